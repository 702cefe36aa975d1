// Package resolver implements the iterative resolver: authority-first,
// cache-assisted descent from a root nameserver down the delegation chain
// per RFC 1035's referral model.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/watchtowerdns/watchtower/internal/authority"
	"github.com/watchtowerdns/watchtower/internal/cache"
	"github.com/watchtowerdns/watchtower/internal/dns"
	"github.com/watchtowerdns/watchtower/internal/randsrc"
)

// DefaultHopTimeout is the per-hop UDP read budget.
const DefaultHopTimeout = time.Second

// DefaultMaxHops bounds the delegation loop.
const DefaultMaxHops = 16

// Resolver resolves (qname, qtype) pairs by consulting, in order, the
// authority store, the cache, and finally iterative descent from a root
// nameserver.
type Resolver struct {
	authority  *authority.Store
	cache      *cache.Cache
	rnd        randsrc.Source
	logger     *slog.Logger
	rootHints  []string
	hopTimeout time.Duration
	maxHops    int
	nsPort     string
}

// Option configures a Resolver at construction time.
type Option func(*Resolver)

// WithRootHints overrides the compiled-in 13-server root hints list.
func WithRootHints(hints []string) Option {
	return func(r *Resolver) { r.rootHints = hints }
}

// WithNameserverPort overrides the port dialed for every hop (default "53").
// Production callers never need this; it exists so tests can point the
// resolver at a stub nameserver bound to an ephemeral port.
func WithNameserverPort(port string) Option {
	return func(r *Resolver) { r.nsPort = port }
}

// WithHopTimeout overrides DefaultHopTimeout.
func WithHopTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.hopTimeout = d }
}

// WithMaxHops overrides DefaultMaxHops.
func WithMaxHops(n int) Option {
	return func(r *Resolver) { r.maxHops = n }
}

// New builds a Resolver. authority and c must not be nil; rnd may be
// randsrc.Default outside of tests.
func New(store *authority.Store, c *cache.Cache, rnd randsrc.Source, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		authority:  store,
		cache:      c,
		rnd:        rnd,
		logger:     logger,
		rootHints:  DefaultRootHints,
		hopTimeout: DefaultHopTimeout,
		maxHops:    DefaultMaxHops,
		nsPort:     "53",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve answers (qname, qtype): directly from the authority if a zone
// matches, else from the cache if warm, else by iterative descent from a
// root nameserver. It never returns an error; resolution failures are
// reported as a SERVFAIL packet, per the propagation policy that resolver
// failures don't crash the calling worker.
func (r *Resolver) Resolve(ctx context.Context, qname string, qtype dns.QueryType) *dns.Packet {
	if res, err := r.authority.Query(qname, qtype); err != nil {
		r.logger.Error("authority query failed", "qname", qname, "error", err)
	} else if res.Matched {
		return packetFromAuthority(qname, qtype, res)
	}

	if answers := r.cache.Lookup(qname, qtype); len(answers) > 0 {
		return packetFromCache(qname, qtype, answers)
	}

	return r.iterativeResolve(ctx, qname, qtype)
}

// packetFromAuthority synthesizes a response packet from the authority's
// QueryResult: QR=1, AA=1, no recursion (the authority is the final word).
func packetFromAuthority(qname string, qtype dns.QueryType, res authority.QueryResult) *dns.Packet {
	p := &dns.Packet{
		Questions:   []dns.Question{{Name: qname, Type: qtype}},
		Answers:     res.Answers,
		Authorities: res.Authorities,
	}
	p.Header.SetQR(true)
	p.Header.SetAA(true)
	p.Header.SetRCode(res.RCode)
	return p
}

// packetFromCache synthesizes a response packet from cached records: QR=1,
// RA=1 (a cache hit implies recursive service is available).
func packetFromCache(qname string, qtype dns.QueryType, answers []dns.ResourceRecord) *dns.Packet {
	p := &dns.Packet{
		Questions: []dns.Question{{Name: qname, Type: qtype}},
		Answers:   answers,
	}
	p.Header.SetQR(true)
	p.Header.SetRA(true)
	p.Header.SetRCode(dns.RCodeNoError)
	return p
}

// servfail builds the SERVFAIL response the propagation policy requires on
// resolver failure, carrying the original question.
func servfail(qname string, qtype dns.QueryType) *dns.Packet {
	p := &dns.Packet{Questions: []dns.Question{{Name: qname, Type: qtype}}}
	p.Header.SetQR(true)
	p.Header.SetRA(true)
	p.Header.SetRCode(dns.RCodeServFail)
	return p
}

// iterativeResolve implements spec.md's 4-step resolver algorithm: descend
// from a root nameserver, following NS delegation until an authoritative
// answer or NXDOMAIN is reached, bounded to maxHops.
func (r *Resolver) iterativeResolve(ctx context.Context, qname string, qtype dns.QueryType) *dns.Packet {
	ns := r.rootHints[r.rnd.Intn(len(r.rootHints))]

	for hop := 0; hop < r.maxHops; hop++ {
		resp, err := r.exchange(ctx, ns, qname, qtype)
		if err != nil {
			r.logger.Warn("resolver hop failed", "qname", qname, "nameserver", ns, "hop", hop, "error", err)
			return servfail(qname, qtype)
		}

		r.cache.Store(allRecords(resp))

		if len(resp.Answers) > 0 && resp.Header.RCode() == dns.RCodeNoError {
			return resp
		}
		if resp.Header.RCode() == dns.RCodeNXDomain {
			return resp
		}

		if next, ok := resp.ResolvedNS(qname, r.rnd); ok {
			ns = next
			continue
		}

		if host, ok := resp.UnresolvedNS(qname, r.rnd); ok {
			sub := r.Resolve(ctx, host, dns.TypeA)
			addr, ok := sub.RandomA(r.rnd)
			if sub.Header.RCode() != dns.RCodeNoError || !ok {
				return servfail(qname, qtype)
			}
			ns = addr
			continue
		}

		return resp
	}

	r.logger.Warn("resolver exhausted hop budget", "qname", qname, "max_hops", r.maxHops)
	return servfail(qname, qtype)
}

// allRecords flattens a response's answer, authority, and additional
// sections for a single cache.Store call, per spec.md step 3.b.
func allRecords(p *dns.Packet) []dns.ResourceRecord {
	out := make([]dns.ResourceRecord, 0, len(p.Answers)+len(p.Authorities)+len(p.Additionals))
	out = append(out, p.Answers...)
	out = append(out, p.Authorities...)
	out = append(out, p.Additionals...)
	return out
}

// exchange sends a single query to nameserver on UDP/53 and parses its
// response, enforcing the per-hop timeout. It reuses no state across calls:
// a fresh ephemeral socket is opened and closed per hop, which keeps the
// resolver free of connection-pool bookkeeping the iterative algorithm
// doesn't call for.
func (r *Resolver) exchange(ctx context.Context, nameserver, qname string, qtype dns.QueryType) (*dns.Packet, error) {
	query := &dns.Packet{
		Questions: []dns.Question{{Name: qname, Type: qtype}},
	}
	query.Header.ID = r.rnd.Uint16()
	query.Header.SetRD(false)

	buf := dns.NewFixedBuffer()
	if err := query.Write(buf, dns.MaxUDPPayloadSize); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	addr := net.JoinHostPort(nameserver, r.nsPort)
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(r.hopTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write(buf.Bytes()[:buf.Pos()]); err != nil {
		return nil, fmt.Errorf("send query: %w", err)
	}

	resp := make([]byte, dns.MaxUDPPayloadSize)
	n, err := conn.Read(resp)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, fmt.Errorf("%s: %w", addr, ErrTimeout)
		}
		return nil, fmt.Errorf("read response from %s: %w", addr, err)
	}

	respBuf := dns.NewFixedBufferFrom(resp[:n])
	packet, err := dns.ParsePacket(respBuf)
	if err != nil {
		return nil, fmt.Errorf("parse response from %s: %w", addr, err)
	}
	return packet, nil
}
