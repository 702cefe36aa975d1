package resolver_test

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/watchtowerdns/watchtower/internal/authority"
	"github.com/watchtowerdns/watchtower/internal/cache"
	"github.com/watchtowerdns/watchtower/internal/dns"
	"github.com/watchtowerdns/watchtower/internal/randsrc"
	"github.com/watchtowerdns/watchtower/internal/resolver"
)

// startStubNameserver binds an ephemeral UDP port and answers every query by
// calling handler with the parsed question and the 0-based call count, so a
// test can script a multi-hop delegation chain from a single listener (every
// hop in spec.md's algorithm queries the same nameserver port; which server
// answers next is determined by the glue address a previous response
// carried, not by a distinct port).
func startStubNameserver(t *testing.T, handler func(call int, q dns.Question) *dns.Packet) (ip, port string) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var calls atomic.Int64

	go func() {
		buf := make([]byte, dns.MaxUDPPayloadSize)
		for {
			n, peer, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			req, err := dns.ParsePacket(dns.NewFixedBufferFrom(buf[:n]))
			if err != nil || len(req.Questions) == 0 {
				continue
			}
			call := int(calls.Add(1)) - 1
			resp := handler(call, req.Questions[0])
			resp.Header.ID = req.Header.ID
			resp.Header.SetQR(true)

			out := dns.NewFixedBuffer()
			if err := resp.Write(out, dns.MaxUDPPayloadSize); err != nil {
				continue
			}
			_, _ = conn.WriteTo(out.Bytes()[:out.Pos()], peer)
		}
	}()

	host, p, err := net.SplitHostPort(conn.LocalAddr().String())
	require.NoError(t, err)
	return host, p
}

func openTestStore(t *testing.T) *authority.Store {
	t.Helper()
	s, err := authority.Open(t.TempDir()+"/zones.db", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestResolveReturnsAuthorityMatchDirectly(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.CreateZone(authority.NewZone("example.com", "ns1.example.com", "admin.example.com")))
	require.NoError(t, store.AddRecord("example.com", dns.TypeA, "www.example.com", "93.184.216.34", 300))

	r := resolver.New(store, cache.New(), randsrc.Default, slog.Default())
	resp := r.Resolve(context.Background(), "www.example.com", dns.TypeA)

	require.True(t, resp.Header.AA())
	require.Len(t, resp.Answers, 1)
	a, ok := resp.Answers[0].(dns.ARecord)
	require.True(t, ok)
	require.Equal(t, "93.184.216.34", a.Addr.String())
}

func TestResolveReturnsCacheHitWithoutNetwork(t *testing.T) {
	store := openTestStore(t)
	c := cache.New()
	c.Store([]dns.ResourceRecord{
		dns.ARecord{H: dns.RRHeader{Domain: "cached.example.com", TTL: 60}, Addr: net.ParseIP("10.0.0.1")},
	})

	// An unreachable root hint proves the cache hit short-circuits before
	// any network I/O: if the resolver fell through to iteration, this
	// would time out instead of returning promptly.
	r := resolver.New(store, c, randsrc.Default, slog.Default(),
		resolver.WithRootHints([]string{"203.0.113.1"}),
		resolver.WithHopTimeout(10*time.Millisecond),
	)
	resp := r.Resolve(context.Background(), "cached.example.com", dns.TypeA)

	require.True(t, resp.Header.RA())
	require.Len(t, resp.Answers, 1)
}

// TestIterativeResolveFollowsDelegationWithGlue grounds S4: a root answer
// delegates to "com." with glue, that answer delegates to "example.com."
// with glue, and the third answer carries the final A record plus the
// zone's NS record, so each hop contributes NS and A records to the cache.
func TestIterativeResolveFollowsDelegationWithGlue(t *testing.T) {
	store := openTestStore(t)
	c := cache.New()

	var ip, port string
	ip, port = startStubNameserver(t, func(call int, q dns.Question) *dns.Packet {
		switch call {
		case 0:
			p := &dns.Packet{
				Questions:   []dns.Question{q},
				Authorities: []dns.ResourceRecord{dns.NSRecord{H: dns.RRHeader{Domain: "com", TTL: 300}, Host: "a.gtld-servers.net"}},
				Additionals: []dns.ResourceRecord{dns.ARecord{H: dns.RRHeader{Domain: "a.gtld-servers.net", TTL: 300}, Addr: net.ParseIP(ip)}},
			}
			p.Header.SetRCode(dns.RCodeNoError)
			return p
		case 1:
			p := &dns.Packet{
				Questions:   []dns.Question{q},
				Authorities: []dns.ResourceRecord{dns.NSRecord{H: dns.RRHeader{Domain: "example.com", TTL: 300}, Host: "ns1.example.com"}},
				Additionals: []dns.ResourceRecord{dns.ARecord{H: dns.RRHeader{Domain: "ns1.example.com", TTL: 300}, Addr: net.ParseIP(ip)}},
			}
			p.Header.SetRCode(dns.RCodeNoError)
			return p
		default:
			p := &dns.Packet{
				Questions: []dns.Question{q},
				Answers:     []dns.ResourceRecord{dns.ARecord{H: dns.RRHeader{Domain: "www.example.com", TTL: 300}, Addr: net.ParseIP("93.184.216.34")}},
				Authorities: []dns.ResourceRecord{dns.NSRecord{H: dns.RRHeader{Domain: "example.com", TTL: 300}, Host: "ns2.example.com"}},
			}
			p.Header.SetRCode(dns.RCodeNoError)
			return p
		}
	})

	r := resolver.New(store, c, randsrc.Default, slog.Default(),
		resolver.WithRootHints([]string{ip}),
		resolver.WithNameserverPort(port),
		resolver.WithHopTimeout(2*time.Second),
	)
	resp := r.Resolve(context.Background(), "www.example.com", dns.TypeA)

	require.Equal(t, dns.RCodeNoError, resp.Header.RCode())
	require.Len(t, resp.Answers, 1)
	a, ok := resp.Answers[0].(dns.ARecord)
	require.True(t, ok)
	require.Equal(t, "93.184.216.34", a.Addr.String())

	var total int
	for _, d := range c.List() {
		total += len(d.Records)
	}
	require.GreaterOrEqual(t, total, 6)
}

// TestIterativeResolveNXDomainPassthrough grounds S5: NXDOMAIN passes
// through unchanged and the SOA in its authority section is still cached.
func TestIterativeResolveNXDomainPassthrough(t *testing.T) {
	store := openTestStore(t)
	c := cache.New()

	ip, port := startStubNameserver(t, func(call int, q dns.Question) *dns.Packet {
		p := &dns.Packet{
			Questions: []dns.Question{q},
			Authorities: []dns.ResourceRecord{dns.SOARecord{
				H: dns.RRHeader{Domain: "example.com", TTL: 300},
				MName: "ns1.example.com", RName: "admin.example.com",
				Serial: 1, Refresh: 1, Retry: 1, Expire: 1, Minimum: 1,
			}},
		}
		p.Header.SetRCode(dns.RCodeNXDomain)
		return p
	})

	r := resolver.New(store, c, randsrc.Default, slog.Default(),
		resolver.WithRootHints([]string{ip}),
		resolver.WithNameserverPort(port),
		resolver.WithHopTimeout(2*time.Second),
	)
	resp := r.Resolve(context.Background(), "nope.example.com", dns.TypeA)

	require.Equal(t, dns.RCodeNXDomain, resp.Header.RCode())
	require.NotEmpty(t, c.List())
}

func TestIterativeResolveTimeoutReturnsServfail(t *testing.T) {
	store := openTestStore(t)
	c := cache.New()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close() // bound but never read from: every hop times out

	host, port, err := net.SplitHostPort(conn.LocalAddr().String())
	require.NoError(t, err)

	r := resolver.New(store, c, randsrc.Default, slog.Default(),
		resolver.WithRootHints([]string{host}),
		resolver.WithNameserverPort(port),
		resolver.WithHopTimeout(30*time.Millisecond),
	)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp := r.Resolve(ctx, "example.com", dns.TypeA)
	require.Equal(t, dns.RCodeServFail, resp.Header.RCode())
}

// TestIterativeResolveExhaustsHopsReturnsServfail grounds step 4's hop cap:
// a nameserver that always refers back to itself never makes progress, so
// the loop must bail out rather than spin forever.
func TestIterativeResolveExhaustsHopsReturnsServfail(t *testing.T) {
	store := openTestStore(t)
	c := cache.New()

	var ip string
	ip, port := startStubNameserver(t, func(call int, q dns.Question) *dns.Packet {
		p := &dns.Packet{
			Questions:   []dns.Question{q},
			Authorities: []dns.ResourceRecord{dns.NSRecord{H: dns.RRHeader{Domain: "com", TTL: 300}, Host: "a.gtld-servers.net"}},
			Additionals: []dns.ResourceRecord{dns.ARecord{H: dns.RRHeader{Domain: "a.gtld-servers.net", TTL: 300}, Addr: net.ParseIP(ip)}},
		}
		p.Header.SetRCode(dns.RCodeNoError)
		return p
	})

	r := resolver.New(store, c, randsrc.Default, slog.Default(),
		resolver.WithRootHints([]string{ip}),
		resolver.WithNameserverPort(port),
		resolver.WithHopTimeout(2*time.Second),
		resolver.WithMaxHops(3),
	)
	resp := r.Resolve(context.Background(), "www.example.com", dns.TypeA)

	require.Equal(t, dns.RCodeServFail, resp.Header.RCode())
}
