package authority

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/watchtowerdns/watchtower/internal/dns"
)

// DefaultTTL is applied to a zone's numeric SOA fields and to records
// created without an explicit ttl, per spec.md §6's documented defaults.
const DefaultTTL = 3600

// Record is one A/AAAA/CNAME entry owned by a Zone, as created through
// POST /authority/{zone}.
type Record struct {
	Type   dns.QueryType // TypeA, TypeAAAA, or TypeCNAME
	Domain string
	TTL    uint32
	Host   string // dotted-quad, colon-hex, or a CNAME target, as received
}

// Zone is an authoritative DNS zone: its SOA fields plus the A/AAAA/CNAME
// records added under it. The zone's NS record is synthesized from MName
// when a response is built; it is not stored as a separate Record.
type Zone struct {
	Domain  string
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
	Records []Record
}

// NewZone builds a Zone applying spec.md §6's defaults for absent numeric
// fields (3600 for refresh/retry/expire/minimum, 0 for serial).
func NewZone(domain, mname, rname string) *Zone {
	return &Zone{
		Domain:  dns.NormalizeName(domain),
		MName:   mname,
		RName:   rname,
		Serial:  0,
		Refresh: DefaultTTL,
		Retry:   DefaultTTL,
		Expire:  DefaultTTL,
		Minimum: DefaultTTL,
	}
}

// AddRecord validates and appends a record, applying DefaultTTL when ttl
// is zero.
func (z *Zone) AddRecord(recordType dns.QueryType, domain, host string, ttl uint32) error {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	switch recordType {
	case dns.TypeA:
		ip := net.ParseIP(host)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("%w: A record host must be a dotted-quad IPv4 address", ErrInvalidRecord)
		}
	case dns.TypeAAAA:
		ip := net.ParseIP(host)
		if ip == nil || strings.Contains(host, ".") {
			return fmt.Errorf("%w: AAAA record host must be a colon-hex IPv6 address", ErrInvalidRecord)
		}
	case dns.TypeCNAME:
		if host == "" {
			return fmt.Errorf("%w: CNAME record requires a target", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: unsupported record type %s", ErrInvalidRecord, recordType)
	}

	z.Records = append(z.Records, Record{
		Type:   recordType,
		Domain: dns.NormalizeName(domain),
		TTL:    ttl,
		Host:   host,
	})
	return nil
}

// SOARecord builds the zone's SOA resource record.
func (z *Zone) SOARecord() dns.SOARecord {
	return dns.SOARecord{
		H:       dns.RRHeader{Domain: z.Domain, TTL: z.Minimum},
		MName:   z.MName,
		RName:   z.RName,
		Serial:  z.Serial,
		Refresh: z.Refresh,
		Retry:   z.Retry,
		Expire:  z.Expire,
		Minimum: z.Minimum,
	}
}

// NSRecord builds the zone's synthesized NS record, pointing at MName.
func (z *Zone) NSRecord() dns.NSRecord {
	return dns.NSRecord{H: dns.RRHeader{Domain: z.Domain, TTL: z.Minimum}, Host: z.MName}
}

// recordToRR converts a stored Record to its wire ResourceRecord form.
func recordToRR(r Record) (dns.ResourceRecord, error) {
	switch r.Type {
	case dns.TypeA:
		return dns.ARecord{H: dns.RRHeader{Domain: r.Domain, TTL: r.TTL}, Addr: net.ParseIP(r.Host)}, nil
	case dns.TypeAAAA:
		return dns.AAAARecord{H: dns.RRHeader{Domain: r.Domain, TTL: r.TTL}, Addr: net.ParseIP(r.Host)}, nil
	case dns.TypeCNAME:
		return dns.CNAMERecord{H: dns.RRHeader{Domain: r.Domain, TTL: r.TTL}, Target: r.Host}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported stored record type %s", ErrInvalidRecord, r.Type)
	}
}

// ParseTTL parses a BIND-style TTL token (plain seconds, or a sequence of
// number+suffix pairs such as "1h30m") into seconds. Adapted from the
// zone-file TTL grammar. POST /authority/{zone} takes ttl as a plain number
// of seconds in its JSON body and does not call this parser.
func ParseTTL(tok string) (uint32, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, fmt.Errorf("%w: empty ttl", ErrInvalidRecord)
	}
	if n, err := strconv.ParseUint(tok, 10, 32); err == nil {
		return uint32(n), nil
	}

	var total uint64
	num := ""
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if c >= '0' && c <= '9' {
			num += string(c)
			continue
		}
		if num == "" {
			return 0, fmt.Errorf("%w: invalid ttl %q", ErrInvalidRecord, tok)
		}
		n, err := strconv.ParseUint(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid ttl %q", ErrInvalidRecord, tok)
		}
		num = ""
		var mul uint64
		switch c {
		case 's', 'S':
			mul = 1
		case 'm', 'M':
			mul = 60
		case 'h', 'H':
			mul = 3600
		case 'd', 'D':
			mul = 86400
		case 'w', 'W':
			mul = 604800
		default:
			return 0, fmt.Errorf("%w: unknown ttl suffix %q", ErrInvalidRecord, string(c))
		}
		total += n * mul
	}
	if num != "" {
		return 0, fmt.Errorf("%w: ttl %q missing a trailing unit", ErrInvalidRecord, tok)
	}
	if total > uint64(^uint32(0)) {
		return 0, fmt.Errorf("%w: ttl %q too large", ErrInvalidRecord, tok)
	}
	return uint32(total), nil
}
