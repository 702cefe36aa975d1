package dns

import (
	"fmt"
	"net"
	"strings"
)

// RRHeader is the common substructure every ResourceRecord variant carries:
// the owning domain and the record's TTL. OPTRecord is the one variant
// without a meaningful domain, per RFC 6891.
type RRHeader struct {
	Domain string
	TTL    uint32
}

// ResourceRecord is the sum type over the supported DNS record payloads.
// Each concrete type below is one variant; QueryType identifies which.
type ResourceRecord interface {
	QueryType() QueryType
	Domain() string
	TTL() uint32

	// Write serializes the record to buf and returns the number of bytes
	// written. OPTRecord and UnknownRecord are not round-tripped on write
	// (see §4.2): callers should skip them rather than call Write.
	Write(buf PacketBuffer) (int, error)
}

type ARecord struct {
	H    RRHeader
	Addr net.IP
}

func (r ARecord) QueryType() QueryType { return TypeA }
func (r ARecord) Domain() string       { return r.H.Domain }
func (r ARecord) TTL() uint32          { return r.H.TTL }

func (r ARecord) Write(buf PacketBuffer) (int, error) {
	start := buf.Pos()
	if err := writeRRHeader(buf, r.H.Domain, TypeA, r.H.TTL); err != nil {
		return 0, err
	}
	ip4 := r.Addr.To4()
	if ip4 == nil {
		return 0, fmt.Errorf("%w: A record requires an IPv4 address", ErrMalformed)
	}
	if err := buf.WriteU16(4); err != nil {
		return 0, err
	}
	for _, o := range ip4 {
		if err := buf.WriteU8(o); err != nil {
			return 0, err
		}
	}
	return buf.Pos() - start, nil
}

type AAAARecord struct {
	H    RRHeader
	Addr net.IP
}

func (r AAAARecord) QueryType() QueryType { return TypeAAAA }
func (r AAAARecord) Domain() string       { return r.H.Domain }
func (r AAAARecord) TTL() uint32          { return r.H.TTL }

func (r AAAARecord) Write(buf PacketBuffer) (int, error) {
	start := buf.Pos()
	if err := writeRRHeader(buf, r.H.Domain, TypeAAAA, r.H.TTL); err != nil {
		return 0, err
	}
	ip16 := r.Addr.To16()
	if ip16 == nil {
		return 0, fmt.Errorf("%w: AAAA record requires an IPv6 address", ErrMalformed)
	}
	if err := buf.WriteU16(16); err != nil {
		return 0, err
	}
	for i := 0; i < 16; i += 2 {
		seg := uint16(ip16[i])<<8 | uint16(ip16[i+1])
		if err := buf.WriteU16(seg); err != nil {
			return 0, err
		}
	}
	return buf.Pos() - start, nil
}

type NSRecord struct {
	H    RRHeader
	Host string
}

func (r NSRecord) QueryType() QueryType { return TypeNS }
func (r NSRecord) Domain() string       { return r.H.Domain }
func (r NSRecord) TTL() uint32          { return r.H.TTL }
func (r NSRecord) Write(buf PacketBuffer) (int, error) {
	return writeNameRecord(buf, r.H, TypeNS, r.Host)
}

type CNAMERecord struct {
	H      RRHeader
	Target string
}

func (r CNAMERecord) QueryType() QueryType { return TypeCNAME }
func (r CNAMERecord) Domain() string       { return r.H.Domain }
func (r CNAMERecord) TTL() uint32          { return r.H.TTL }
func (r CNAMERecord) Write(buf PacketBuffer) (int, error) {
	return writeNameRecord(buf, r.H, TypeCNAME, r.Target)
}

// PTRRecord is supplemental to spec.md's required variant list (see
// SPEC_FULL.md §C.1): reverse-DNS records, sharing the NS/CNAME wire shape.
type PTRRecord struct {
	H      RRHeader
	Target string
}

func (r PTRRecord) QueryType() QueryType { return TypePTR }
func (r PTRRecord) Domain() string       { return r.H.Domain }
func (r PTRRecord) TTL() uint32          { return r.H.TTL }
func (r PTRRecord) Write(buf PacketBuffer) (int, error) {
	return writeNameRecord(buf, r.H, TypePTR, r.Target)
}

// writeNameRecord writes the shared wire shape of NS/CNAME/PTR: a header,
// a 2-byte rdlength slot, a single compressed name, then the back-patch.
func writeNameRecord(buf PacketBuffer, h RRHeader, qtype QueryType, name string) (int, error) {
	start := buf.Pos()
	if err := writeRRHeader(buf, h.Domain, qtype, h.TTL); err != nil {
		return 0, err
	}
	lenPos := buf.Pos()
	if err := buf.WriteU16(0); err != nil {
		return 0, err
	}
	if err := buf.WriteQName(name); err != nil {
		return 0, err
	}
	if err := backpatchLen(buf, lenPos); err != nil {
		return 0, err
	}
	return buf.Pos() - start, nil
}

type MXRecord struct {
	H        RRHeader
	Priority uint16
	Exchange string
}

func (r MXRecord) QueryType() QueryType { return TypeMX }
func (r MXRecord) Domain() string       { return r.H.Domain }
func (r MXRecord) TTL() uint32          { return r.H.TTL }

func (r MXRecord) Write(buf PacketBuffer) (int, error) {
	start := buf.Pos()
	if err := writeRRHeader(buf, r.H.Domain, TypeMX, r.H.TTL); err != nil {
		return 0, err
	}
	lenPos := buf.Pos()
	if err := buf.WriteU16(0); err != nil {
		return 0, err
	}
	if err := buf.WriteU16(r.Priority); err != nil {
		return 0, err
	}
	if err := buf.WriteQName(r.Exchange); err != nil {
		return 0, err
	}
	if err := backpatchLen(buf, lenPos); err != nil {
		return 0, err
	}
	return buf.Pos() - start, nil
}

type SRVRecord struct {
	H        RRHeader
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

func (r SRVRecord) QueryType() QueryType { return TypeSRV }
func (r SRVRecord) Domain() string       { return r.H.Domain }
func (r SRVRecord) TTL() uint32          { return r.H.TTL }

func (r SRVRecord) Write(buf PacketBuffer) (int, error) {
	start := buf.Pos()
	if err := writeRRHeader(buf, r.H.Domain, TypeSRV, r.H.TTL); err != nil {
		return 0, err
	}
	lenPos := buf.Pos()
	if err := buf.WriteU16(0); err != nil {
		return 0, err
	}
	for _, v := range []uint16{r.Priority, r.Weight, r.Port} {
		if err := buf.WriteU16(v); err != nil {
			return 0, err
		}
	}
	if err := buf.WriteQName(r.Target); err != nil {
		return 0, err
	}
	if err := backpatchLen(buf, lenPos); err != nil {
		return 0, err
	}
	return buf.Pos() - start, nil
}

type SOARecord struct {
	H       RRHeader
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

func (r SOARecord) QueryType() QueryType { return TypeSOA }
func (r SOARecord) Domain() string       { return r.H.Domain }
func (r SOARecord) TTL() uint32          { return r.H.TTL }

func (r SOARecord) Write(buf PacketBuffer) (int, error) {
	start := buf.Pos()
	if err := writeRRHeader(buf, r.H.Domain, TypeSOA, r.H.TTL); err != nil {
		return 0, err
	}
	lenPos := buf.Pos()
	if err := buf.WriteU16(0); err != nil {
		return 0, err
	}
	if err := buf.WriteQName(r.MName); err != nil {
		return 0, err
	}
	if err := buf.WriteQName(r.RName); err != nil {
		return 0, err
	}
	for _, v := range []uint32{r.Serial, r.Refresh, r.Retry, r.Expire, r.Minimum} {
		if err := buf.WriteU32(v); err != nil {
			return 0, err
		}
	}
	if err := backpatchLen(buf, lenPos); err != nil {
		return 0, err
	}
	return buf.Pos() - start, nil
}

type TXTRecord struct {
	H    RRHeader
	Text string
}

func (r TXTRecord) QueryType() QueryType { return TypeTXT }
func (r TXTRecord) Domain() string       { return r.H.Domain }
func (r TXTRecord) TTL() uint32          { return r.H.TTL }

func (r TXTRecord) Write(buf PacketBuffer) (int, error) {
	start := buf.Pos()
	if err := writeRRHeader(buf, r.H.Domain, TypeTXT, r.H.TTL); err != nil {
		return 0, err
	}
	payload := []byte(r.Text)
	if err := buf.WriteU16(uint16(len(payload))); err != nil {
		return 0, err
	}
	for _, b := range payload {
		if err := buf.WriteU8(b); err != nil {
			return 0, err
		}
	}
	return buf.Pos() - start, nil
}

// OPTRecord carries the RFC 6891 pseudo-record's class/ttl-repurposed
// fields and raw data. It is parsed but, per §4.2, NOT re-emitted on write:
// a correct implementation should preserve it, but that's an acknowledged
// gap this codec shares with the protocol it was distilled from.
type OPTRecord struct {
	Class uint16
	Ttl   uint32
	Data  []byte
}

func (r OPTRecord) QueryType() QueryType { return TypeOPT }
func (r OPTRecord) Domain() string       { return "" }
func (r OPTRecord) TTL() uint32          { return r.Ttl }
func (r OPTRecord) Write(PacketBuffer) (int, error) {
	return 0, nil
}

// UnknownRecord retains enough of an unrecognized record type to log it,
// but per §4.2 is never re-emitted meaningfully.
type UnknownRecord struct {
	H       RRHeader
	TypeNum uint16
	DataLen uint16
}

func (r UnknownRecord) QueryType() QueryType { return QueryTypeFromNum(r.TypeNum) }
func (r UnknownRecord) Domain() string       { return r.H.Domain }
func (r UnknownRecord) TTL() uint32          { return r.H.TTL }
func (r UnknownRecord) Write(PacketBuffer) (int, error) {
	return 0, nil
}

func writeRRHeader(buf PacketBuffer, domain string, qtype QueryType, ttl uint32) error {
	if err := buf.WriteQName(domain); err != nil {
		return err
	}
	if err := buf.WriteU16(qtype.Num()); err != nil {
		return err
	}
	if err := buf.WriteU16(1); err != nil { // class IN
		return err
	}
	return buf.WriteU32(ttl)
}

func backpatchLen(buf PacketBuffer, lenPos int) error {
	size := buf.Pos() - (lenPos + 2)
	return buf.SetU16(lenPos, uint16(size))
}

// NotRoundTrippable reports whether rec is skipped on write (OPT, UNKNOWN).
func NotRoundTrippable(rec ResourceRecord) bool {
	switch rec.(type) {
	case OPTRecord, UnknownRecord:
		return true
	default:
		return false
	}
}

// ReadResourceRecord parses one resource record at the current position.
func ReadResourceRecord(buf PacketBuffer) (ResourceRecord, error) {
	domain, err := buf.ReadQName()
	if err != nil {
		return nil, err
	}
	typeNum, err := buf.ReadU16()
	if err != nil {
		return nil, err
	}
	class, err := buf.ReadU16()
	if err != nil {
		return nil, err
	}
	ttl, err := buf.ReadU32()
	if err != nil {
		return nil, err
	}
	rdlen, err := buf.ReadU16()
	if err != nil {
		return nil, err
	}

	qtype := QueryTypeFromNum(typeNum)
	h := RRHeader{Domain: domain, TTL: ttl}

	switch qtype {
	case TypeA:
		raw, err := buf.ReadU32()
		if err != nil {
			return nil, err
		}
		addr := net.IPv4(byte(raw>>24), byte(raw>>16), byte(raw>>8), byte(raw))
		return ARecord{H: h, Addr: addr}, nil

	case TypeAAAA:
		segs := make([]byte, 16)
		for i := 0; i < 8; i++ {
			v, err := buf.ReadU16()
			if err != nil {
				return nil, err
			}
			segs[i*2] = byte(v >> 8)
			segs[i*2+1] = byte(v)
		}
		return AAAARecord{H: h, Addr: net.IP(segs)}, nil

	case TypeNS:
		host, err := buf.ReadQName()
		if err != nil {
			return nil, err
		}
		return NSRecord{H: h, Host: host}, nil

	case TypeCNAME:
		target, err := buf.ReadQName()
		if err != nil {
			return nil, err
		}
		return CNAMERecord{H: h, Target: target}, nil

	case TypePTR:
		target, err := buf.ReadQName()
		if err != nil {
			return nil, err
		}
		return PTRRecord{H: h, Target: target}, nil

	case TypeMX:
		pri, err := buf.ReadU16()
		if err != nil {
			return nil, err
		}
		exchange, err := buf.ReadQName()
		if err != nil {
			return nil, err
		}
		return MXRecord{H: h, Priority: pri, Exchange: exchange}, nil

	case TypeSRV:
		pri, err := buf.ReadU16()
		if err != nil {
			return nil, err
		}
		weight, err := buf.ReadU16()
		if err != nil {
			return nil, err
		}
		port, err := buf.ReadU16()
		if err != nil {
			return nil, err
		}
		target, err := buf.ReadQName()
		if err != nil {
			return nil, err
		}
		return SRVRecord{H: h, Priority: pri, Weight: weight, Port: port, Target: target}, nil

	case TypeSOA:
		mname, err := buf.ReadQName()
		if err != nil {
			return nil, err
		}
		rname, err := buf.ReadQName()
		if err != nil {
			return nil, err
		}
		var vals [5]uint32
		for i := range vals {
			if vals[i], err = buf.ReadU32(); err != nil {
				return nil, err
			}
		}
		return SOARecord{
			H: h, MName: mname, RName: rname,
			Serial: vals[0], Refresh: vals[1], Retry: vals[2], Expire: vals[3], Minimum: vals[4],
		}, nil

	case TypeTXT:
		raw, err := buf.GetRange(buf.Pos(), int(rdlen))
		if err != nil {
			return nil, err
		}
		text := strings.ToValidUTF8(string(raw), "�")
		if err := buf.Step(int(rdlen)); err != nil {
			return nil, err
		}
		return TXTRecord{H: h, Text: text}, nil

	case TypeOPT:
		raw, err := buf.GetRange(buf.Pos(), int(rdlen))
		if err != nil {
			return nil, err
		}
		data := append([]byte(nil), raw...)
		if err := buf.Step(int(rdlen)); err != nil {
			return nil, err
		}
		return OPTRecord{Class: class, Ttl: ttl, Data: data}, nil

	default:
		if err := buf.Step(int(rdlen)); err != nil {
			return nil, err
		}
		return UnknownRecord{H: h, TypeNum: typeNum, DataLen: rdlen}, nil
	}
}
