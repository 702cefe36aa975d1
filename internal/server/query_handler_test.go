package server

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/watchtowerdns/watchtower/internal/authority"
	"github.com/watchtowerdns/watchtower/internal/cache"
	"github.com/watchtowerdns/watchtower/internal/dns"
	"github.com/watchtowerdns/watchtower/internal/randsrc"
	"github.com/watchtowerdns/watchtower/internal/resolver"
)

func newTestHandler(t *testing.T, timeout time.Duration, opts ...resolver.Option) *QueryHandler {
	t.Helper()
	store, err := authority.Open(t.TempDir()+"/zones.db", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.CreateZone(authority.NewZone("example.com", "ns1.example.com", "admin.example.com")))
	require.NoError(t, store.AddRecord("example.com", dns.TypeA, "www.example.com", "192.0.2.1", 300))

	r := resolver.New(store, cache.New(), randsrc.Default, slog.Default(), opts...)
	return &QueryHandler{Logger: slog.Default(), Resolver: r, Timeout: timeout}
}

func buildQuery(t *testing.T, id uint16, qname string, qtype dns.QueryType) []byte {
	t.Helper()
	p := &dns.Packet{
		Header:    dns.Header{ID: id},
		Questions: []dns.Question{{Name: qname, Type: qtype}},
	}
	p.Header.SetRD(true)
	buf := dns.NewFixedBuffer()
	require.NoError(t, p.Write(buf, dns.MaxUDPPayloadSize))
	return buf.Bytes()[:buf.Pos()]
}

func TestQueryHandlerHandleAuthorityMatch(t *testing.T) {
	h := newTestHandler(t, 2*time.Second)
	req := buildQuery(t, 0xABCD, "www.example.com", dns.TypeA)

	result := h.Handle(context.Background(), "udp", "192.0.2.200:5353", req)

	require.True(t, result.ParsedOK)
	require.Equal(t, "authority", result.Source)
	require.NotEmpty(t, result.ResponseBytes)

	resp, err := dns.ParsePacket(dns.NewFixedBufferFrom(result.ResponseBytes))
	require.NoError(t, err)
	require.Equal(t, uint16(0xABCD), resp.Header.ID)
	require.True(t, resp.Header.QR())
	require.Len(t, resp.Answers, 1)
}

func TestQueryHandlerHandleParseErrorTooShort(t *testing.T) {
	h := newTestHandler(t, 2*time.Second)
	result := h.Handle(context.Background(), "udp", "192.0.2.200:5353", []byte{0x00, 0x01})

	require.False(t, result.ParsedOK)
	require.Equal(t, "parse-error", result.Source)
	require.Empty(t, result.ResponseBytes)
}

func TestQueryHandlerHandleFormErrNoQuestion(t *testing.T) {
	h := newTestHandler(t, 2*time.Second)
	p := &dns.Packet{Header: dns.Header{ID: 0x4242}}
	buf := dns.NewFixedBuffer()
	require.NoError(t, p.Write(buf, dns.MaxUDPPayloadSize))

	result := h.Handle(context.Background(), "udp", "192.0.2.200:5353", buf.Bytes()[:buf.Pos()])

	require.True(t, result.ParsedOK)
	require.Equal(t, "formerr", result.Source)

	resp, err := dns.ParsePacket(dns.NewFixedBufferFrom(result.ResponseBytes))
	require.NoError(t, err)
	require.Equal(t, uint16(0x4242), resp.Header.ID)
	require.Equal(t, dns.RCodeFormErr, resp.Header.RCode())
}

func TestQueryHandlerHandleTimeoutReturnsServfail(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	host, port, err := net.SplitHostPort(conn.LocalAddr().String())
	require.NoError(t, err)

	h := newTestHandler(t, 20*time.Millisecond,
		resolver.WithRootHints([]string{host}),
		resolver.WithNameserverPort(port),
		resolver.WithHopTimeout(10*time.Millisecond),
	)
	req := buildQuery(t, 1, "nowhere.invalid", dns.TypeA)

	result := h.Handle(context.Background(), "udp", "192.0.2.200:5353", req)

	require.True(t, result.ParsedOK)
	require.Equal(t, "servfail", result.Source)
	resp, err := dns.ParsePacket(dns.NewFixedBufferFrom(result.ResponseBytes))
	require.NoError(t, err)
	require.Equal(t, dns.RCodeServFail, resp.Header.RCode())
}

func TestQueryHandlerHandleContextCancelled(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	host, port, err := net.SplitHostPort(conn.LocalAddr().String())
	require.NoError(t, err)

	h := newTestHandler(t, 5*time.Second,
		resolver.WithRootHints([]string{host}),
		resolver.WithNameserverPort(port),
		resolver.WithHopTimeout(time.Second),
	)
	req := buildQuery(t, 2, "nowhere.invalid", dns.TypeA)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := h.Handle(ctx, "udp", "192.0.2.200:5353", req)

	require.True(t, result.ParsedOK)
	require.Equal(t, "servfail", result.Source)
}
