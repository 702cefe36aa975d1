// Command watchtower-zonetool inspects and edits an authority zone database
// from the command line, without going through the management API.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/watchtowerdns/watchtower/internal/authority"
	"github.com/watchtowerdns/watchtower/internal/dns"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "watchtower-zonetool: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  watchtower-zonetool -db PATH list
  watchtower-zonetool -db PATH show ZONE
  watchtower-zonetool -db PATH create ZONE MNAME RNAME
  watchtower-zonetool -db PATH add ZONE TYPE NAME HOST [TTL]
`)
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watchtower-zonetool", flag.ContinueOnError)
	dbPath := fs.String("db", "zones.db", "Path to the authority zone database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		usage()
		return fmt.Errorf("no subcommand given")
	}

	store, err := authority.Open(*dbPath, discardLogger())
	if err != nil {
		return fmt.Errorf("open %s: %w", *dbPath, err)
	}
	defer store.Close()

	switch cmd := rest[0]; cmd {
	case "list":
		return listZones(store, out)
	case "show":
		if len(rest) != 2 {
			usage()
			return fmt.Errorf("show requires a zone argument")
		}
		return showZone(store, rest[1], out)
	case "create":
		if len(rest) != 4 {
			usage()
			return fmt.Errorf("create requires ZONE MNAME RNAME")
		}
		return createZone(store, rest[1], rest[2], rest[3], out)
	case "add":
		if len(rest) != 5 && len(rest) != 6 {
			usage()
			return fmt.Errorf("add requires ZONE TYPE NAME HOST [TTL]")
		}
		ttl := uint32(authority.DefaultTTL)
		if len(rest) == 6 {
			var parsed uint32
			if _, err := fmt.Sscanf(rest[5], "%d", &parsed); err != nil {
				return fmt.Errorf("invalid ttl %q: %w", rest[5], err)
			}
			ttl = parsed
		}
		return addRecord(store, rest[1], rest[2], rest[3], rest[4], ttl, out)
	default:
		usage()
		return fmt.Errorf("unknown subcommand %q", cmd)
	}
}

func listZones(store *authority.Store, out io.Writer) error {
	zones := store.Zones()
	sort.Slice(zones, func(i, j int) bool { return zones[i].Domain < zones[j].Domain })
	for _, z := range zones {
		fmt.Fprintf(out, "%s\tmname=%s\trname=%s\tserial=%d\trecords=%d\n",
			z.Domain, z.MName, z.RName, z.Serial, len(z.Records))
	}
	return nil
}

func showZone(store *authority.Store, name string, out io.Writer) error {
	z := store.GetZone(dns.NormalizeName(name))
	if z == nil || z.Domain != dns.NormalizeName(name) {
		return fmt.Errorf("no zone authoritative for %q", name)
	}

	soa := z.SOARecord()
	fmt.Fprintf(out, "%s\t%d\tIN\tSOA\t%s %s %d %d %d %d %d\n",
		z.Domain, soa.TTL(), soa.MName, soa.RName, soa.Serial, soa.Refresh, soa.Retry, soa.Expire, soa.Minimum)

	ns := z.NSRecord()
	fmt.Fprintf(out, "%s\t%d\tIN\tNS\t%s\n", z.Domain, ns.TTL(), ns.Host)

	records := append([]authority.Record(nil), z.Records...)
	sort.Slice(records, func(i, j int) bool {
		if records[i].Domain != records[j].Domain {
			return records[i].Domain < records[j].Domain
		}
		return records[i].Type < records[j].Type
	})
	for _, r := range records {
		fmt.Fprintf(out, "%s\t%d\tIN\t%s\t%s\n", r.Domain, r.TTL, r.Type, r.Host)
	}
	return nil
}

func createZone(store *authority.Store, domain, mname, rname string, out io.Writer) error {
	z := authority.NewZone(domain, mname, rname)
	if err := store.CreateZone(z); err != nil {
		return err
	}
	fmt.Fprintf(out, "created zone %s\n", z.Domain)
	return nil
}

func addRecord(store *authority.Store, zoneName, recordType, name, host string, ttl uint32, out io.Writer) error {
	qt, err := parseRecordType(recordType)
	if err != nil {
		return err
	}
	if err := store.AddRecord(zoneName, qt, name, host, ttl); err != nil {
		return err
	}
	fmt.Fprintf(out, "added %s record %s -> %s in zone %s\n", recordType, name, host, zoneName)
	return nil
}

func parseRecordType(s string) (dns.QueryType, error) {
	switch s {
	case "A":
		return dns.TypeA, nil
	case "AAAA":
		return dns.TypeAAAA, nil
	case "CNAME":
		return dns.TypeCNAME, nil
	default:
		return 0, fmt.Errorf("unsupported record type %q: must be A, AAAA, or CNAME", s)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
