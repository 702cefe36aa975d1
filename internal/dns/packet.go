package dns

import (
	"strings"

	"github.com/watchtowerdns/watchtower/internal/randsrc"
)

// MaxQuestions caps the question section on parse (RFC allows more than one
// in principle, but one is universal practice; this just bounds allocation).
const MaxQuestions = 4

// MaxRRPerSection caps each record section on parse so a header carrying
// inflated counts over a short datagram can't drive an oversized allocation.
const MaxRRPerSection = 100

// Packet represents a complete DNS message (RFC 1035 Section 4): a header
// plus the question, answer, authority, and additional sections.
type Packet struct {
	Header      Header
	Questions   []Question
	Answers     []ResourceRecord
	Authorities []ResourceRecord
	Additionals []ResourceRecord
}

// ParsePacket reads a full message from buf: the header, then exactly
// qdcount questions, ancount answers, nscount authorities, and arcount
// additionals, in that order.
func ParsePacket(buf PacketBuffer) (*Packet, error) {
	var h Header
	if err := h.Read(buf); err != nil {
		return nil, err
	}

	p := &Packet{Header: h}

	p.Questions = make([]Question, 0, capCount(h.Questions, MaxQuestions))
	for i := uint16(0); i < h.Questions; i++ {
		var q Question
		if err := q.Read(buf); err != nil {
			return nil, err
		}
		p.Questions = append(p.Questions, q)
	}

	var err error
	if p.Answers, err = readRecords(buf, h.Answers); err != nil {
		return nil, err
	}
	if p.Authorities, err = readRecords(buf, h.AuthoritativeEntries); err != nil {
		return nil, err
	}
	if p.Additionals, err = readRecords(buf, h.ResourceEntries); err != nil {
		return nil, err
	}
	return p, nil
}

func readRecords(buf PacketBuffer, count uint16) ([]ResourceRecord, error) {
	out := make([]ResourceRecord, 0, capCount(count, MaxRRPerSection))
	for i := uint16(0); i < count; i++ {
		rr, err := ReadResourceRecord(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, nil
}

func capCount(n uint16, limit int) int {
	if int(n) > limit {
		return limit
	}
	return int(n)
}

// Write serializes the packet into buf, truncating at maxSize per RFC 1035
// UDP semantics: it measures the full message in a scratch buffer, and on
// first overflow sets TC=1, stops including further records, and corrects
// the section counts to what was actually emitted. Records are kept in
// section order (answers, then authorities, then additionals), so anything
// dropped comes from the tail.
func (p Packet) Write(buf PacketBuffer, maxSize int) error {
	scratch := NewGrowableBuffer()
	if err := p.Header.Write(scratch); err != nil {
		return err
	}
	for _, q := range p.Questions {
		if err := q.Write(scratch); err != nil {
			return err
		}
	}
	baseSize := scratch.Pos()

	answerN, truncated, size := acceptRecords(scratch, baseSize, maxSize, p.Answers)
	authN, addN := 0, 0
	if !truncated {
		authN, truncated, size = acceptRecords(scratch, size, maxSize, p.Authorities)
	}
	if !truncated {
		addN, truncated, _ = acceptRecords(scratch, size, maxSize, p.Additionals)
	}

	h := p.Header
	h.Questions = uint16(len(p.Questions))
	h.Answers = uint16(emittedCount(p.Answers[:answerN]))
	h.AuthoritativeEntries = uint16(emittedCount(p.Authorities[:authN]))
	h.ResourceEntries = uint16(emittedCount(p.Additionals[:addN]))
	h.SetTC(truncated)

	if err := h.Write(buf); err != nil {
		return err
	}
	for _, q := range p.Questions {
		if err := q.Write(buf); err != nil {
			return err
		}
	}
	if err := writeAccepted(buf, p.Answers[:answerN]); err != nil {
		return err
	}
	if err := writeAccepted(buf, p.Authorities[:authN]); err != nil {
		return err
	}
	return writeAccepted(buf, p.Additionals[:addN])
}

// acceptRecords measures, in a scratch buffer, how many leading records of
// recs fit within maxSize given the running size so far, skipping records
// that are never round-tripped (OPT, UNKNOWN) without counting against the
// budget. It returns the accepted count, whether this section was cut
// short, and the cumulative size after acceptance.
func acceptRecords(scratch PacketBuffer, size, maxSize int, recs []ResourceRecord) (int, bool, int) {
	accepted := 0
	for _, rr := range recs {
		if NotRoundTrippable(rr) {
			accepted++
			continue
		}
		n, err := rr.Write(scratch)
		if err != nil || size+n > maxSize {
			return accepted, true, size
		}
		size += n
		accepted++
	}
	return accepted, false, size
}

// emittedCount counts the records of recs that writeAccepted writes, leaving
// out OPT and UNKNOWN records.
func emittedCount(recs []ResourceRecord) int {
	n := 0
	for _, rr := range recs {
		if !NotRoundTrippable(rr) {
			n++
		}
	}
	return n
}

func writeAccepted(buf PacketBuffer, recs []ResourceRecord) error {
	for _, rr := range recs {
		if NotRoundTrippable(rr) {
			continue
		}
		if _, err := rr.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// RandomA uniformly picks one A record from the answer section and returns
// its IPv4 textual form. Returns ok=false if there are no A answers.
func (p Packet) RandomA(rnd randsrc.Source) (string, bool) {
	var addrs []string
	for _, rr := range p.Answers {
		if a, ok := rr.(ARecord); ok {
			addrs = append(addrs, a.Addr.String())
		}
	}
	if len(addrs) == 0 {
		return "", false
	}
	return addrs[rnd.Intn(len(addrs))], true
}

// UnresolvedCNAMEs returns answers that are CNAMEs whose target does not
// also appear as an A record elsewhere in the answer section, so a caller
// can chase them with a follow-up query.
func (p Packet) UnresolvedCNAMEs() []CNAMERecord {
	resolved := make(map[string]bool)
	for _, rr := range p.Answers {
		if a, ok := rr.(ARecord); ok {
			resolved[strings.ToLower(strings.TrimSuffix(a.Domain(), "."))] = true
		}
	}
	var out []CNAMERecord
	for _, rr := range p.Answers {
		if c, ok := rr.(CNAMERecord); ok {
			if !resolved[strings.ToLower(strings.TrimSuffix(c.Target, "."))] {
				out = append(out, c)
			}
		}
	}
	return out
}

// ResolvedNS finds authority NS records whose domain is a case-insensitive
// proper suffix of qname and that have a matching glue A record in the
// additional section, and uniformly picks one such glue IPv4 to query next.
func (p Packet) ResolvedNS(qname string, rnd randsrc.Source) (string, bool) {
	var glued []string
	for _, ns := range p.nsCandidates(qname) {
		for _, rr := range p.Additionals {
			if a, ok := rr.(ARecord); ok && sameName(a.Domain(), ns.Host) {
				glued = append(glued, a.Addr.String())
			}
		}
	}
	if len(glued) == 0 {
		return "", false
	}
	return glued[rnd.Intn(len(glued))], true
}

// UnresolvedNS is ResolvedNS's counterpart for when no glue is available:
// it returns a candidate nameserver hostname so the caller can resolve it
// as a separate (hostname, A) query.
func (p Packet) UnresolvedNS(qname string, rnd randsrc.Source) (string, bool) {
	candidates := p.nsCandidates(qname)
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[rnd.Intn(len(candidates))].Host, true
}

func (p Packet) nsCandidates(qname string) []NSRecord {
	var out []NSRecord
	for _, rr := range p.Authorities {
		ns, ok := rr.(NSRecord)
		if !ok {
			continue
		}
		if isProperSuffix(ns.Domain(), qname) {
			out = append(out, ns)
		}
	}
	return out
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}

// isProperSuffix reports whether domain (e.g. "com.") is a case-insensitive
// proper suffix of qname (e.g. "www.example.com."): domain itself, or
// preceded by a label boundary.
func isProperSuffix(domain, qname string) bool {
	d := strings.ToLower(strings.TrimSuffix(domain, "."))
	q := strings.ToLower(strings.TrimSuffix(qname, "."))
	if d == "" {
		return true // the root zone is a suffix of everything
	}
	if !strings.HasSuffix(q, d) {
		return false
	}
	return len(q) == len(d) || q[len(q)-len(d)-1] == '.'
}

// NormalizeName returns a lowercase domain name without a trailing dot, for
// case-insensitive comparisons. Wire names themselves are never rewritten
// to this form; only comparisons go through it (see isProperSuffix).
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}
