// Command watchtower-query sends a single DNS query over UDP and prints the
// decoded response. It is a debugging aid for poking at watchtower (or any
// other RFC 1035 server) from the command line.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/watchtowerdns/watchtower/internal/dns"
	"github.com/watchtowerdns/watchtower/internal/randsrc"
)

func main() {
	var (
		server  = flag.String("server", "127.0.0.1:53", "DNS server HOST:PORT")
		name    = flag.String("name", "example.com", "Query name")
		qtype   = flag.String("type", "A", "Query type: A, AAAA, CNAME, NS, SOA, MX, TXT, PTR")
		timeout = flag.Duration("timeout", 2*time.Second, "Timeout waiting for a response")
		quiet   = flag.Bool("quiet", false, "Suppress output (exit status still reports success)")
	)
	flag.Parse()

	qt, err := queryTypeFromString(*qtype)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watchtower-query: %v\n", err)
		os.Exit(2)
	}

	resp, err := query(*server, *name, qt, *timeout)
	if err != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "watchtower-query: %v\n", err)
		}
		os.Exit(1)
	}
	if *quiet {
		return
	}
	printResponse(resp)
}

// query sends a single recursion-desired query and returns the parsed response.
func query(server, name string, qt dns.QueryType, timeout time.Duration) (*dns.Packet, error) {
	addr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return nil, fmt.Errorf("resolve server address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", server, err)
	}
	defer conn.Close()

	req := &dns.Packet{Questions: []dns.Question{{Name: dns.NormalizeName(name), Type: qt}}}
	req.Header.ID = randsrc.Default.Uint16()
	req.Header.SetRD(true)

	buf := dns.NewGrowableBuffer()
	if err := req.Write(buf, dns.MaxUDPPayloadSize); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("send query: %w", err)
	}

	respBuf := make([]byte, 65535)
	n, err := conn.Read(respBuf)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	resp, err := dns.ParsePacket(dns.NewFixedBufferFrom(respBuf[:n]))
	if err != nil {
		return nil, fmt.Errorf("parse response (%d bytes): %w", n, err)
	}
	return resp, nil
}

func printResponse(p *dns.Packet) {
	fmt.Printf("id=%d rcode=%s qr=%t aa=%t answers=%d authorities=%d additionals=%d\n",
		p.Header.ID, p.Header.RCode(), p.Header.QR(), p.Header.AA(),
		len(p.Answers), len(p.Authorities), len(p.Additionals))

	printSection("ANSWER", p.Answers)
	printSection("AUTHORITY", p.Authorities)
	printSection("ADDITIONAL", p.Additionals)
}

func printSection(label string, recs []dns.ResourceRecord) {
	if len(recs) == 0 {
		return
	}
	rows := make([]string, 0, len(recs))
	for _, rr := range recs {
		rows = append(rows, formatRR(rr))
	}
	sort.Strings(rows)
	fmt.Printf(";; %s\n", label)
	for _, row := range rows {
		fmt.Println(row)
	}
}

func formatRR(rr dns.ResourceRecord) string {
	switch r := rr.(type) {
	case dns.ARecord:
		return fmt.Sprintf("%s\t%d\tIN\tA\t%s", r.H.Domain, r.H.TTL, r.Addr.String())
	case dns.AAAARecord:
		return fmt.Sprintf("%s\t%d\tIN\tAAAA\t%s", r.H.Domain, r.H.TTL, r.Addr.String())
	case dns.CNAMERecord:
		return fmt.Sprintf("%s\t%d\tIN\tCNAME\t%s", r.H.Domain, r.H.TTL, r.Target)
	case dns.NSRecord:
		return fmt.Sprintf("%s\t%d\tIN\tNS\t%s", r.H.Domain, r.H.TTL, r.Host)
	case dns.PTRRecord:
		return fmt.Sprintf("%s\t%d\tIN\tPTR\t%s", r.H.Domain, r.H.TTL, r.Target)
	case dns.SOARecord:
		return fmt.Sprintf("%s\t%d\tIN\tSOA\t%s %s %d %d %d %d %d",
			r.H.Domain, r.H.TTL, r.MName, r.RName, r.Serial, r.Refresh, r.Retry, r.Expire, r.Minimum)
	case dns.MXRecord:
		return fmt.Sprintf("%s\t%d\tIN\tMX\t%d %s", r.H.Domain, r.H.TTL, r.Priority, r.Exchange)
	case dns.TXTRecord:
		return fmt.Sprintf("%s\t%d\tIN\tTXT\t%q", r.H.Domain, r.H.TTL, r.Text)
	default:
		return fmt.Sprintf("%s\t%d\tIN\t%s\t(unparsed)", rr.Domain(), rr.TTL(), rr.QueryType())
	}
}

func queryTypeFromString(s string) (dns.QueryType, error) {
	switch strings.ToUpper(s) {
	case "A":
		return dns.TypeA, nil
	case "AAAA":
		return dns.TypeAAAA, nil
	case "CNAME":
		return dns.TypeCNAME, nil
	case "NS":
		return dns.TypeNS, nil
	case "SOA":
		return dns.TypeSOA, nil
	case "MX":
		return dns.TypeMX, nil
	case "TXT":
		return dns.TypeTXT, nil
	case "PTR":
		return dns.TypePTR, nil
	default:
		return 0, fmt.Errorf("unsupported query type %q", s)
	}
}
