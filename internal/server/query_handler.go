// Package server implements the DNS protocol server: a UDP listener that
// feeds parsed queries through the authority/cache/resolver pipeline and
// emits wire-format responses.
//
// Goroutine Model:
//
// The server spawns multiple goroutines for handling incoming queries:
//   - UDPServer: 1 receiver + N workers per CPU core
//
// All goroutines are coordinated through a shared context:
//   - Context is cancelled on shutdown signal (SIGINT/SIGTERM)
//   - All goroutines check context regularly and exit cleanly
//   - No long-lived blocking operations without context awareness
//
// Error Handling:
//
// Errors are wrapped with context using fmt.Errorf("...: %w", err) throughout.
// This preserves error chains while adding operational context.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/watchtowerdns/watchtower/internal/dns"
	"github.com/watchtowerdns/watchtower/internal/resolver"
)

// DefaultQueryTimeout bounds how long a single query may occupy a worker.
const DefaultQueryTimeout = 4 * time.Second

// QueryHandler processes DNS queries through the resolver and handles
// timeouts and malformed-request conditions per spec.md §7's propagation
// policy.
type QueryHandler struct {
	Logger   *slog.Logger
	Resolver *resolver.Resolver
	Timeout  time.Duration // Maximum time for query resolution (default: 4s)
	Stats    *DNSStats     // Optional; recorded per query when set
}

// HandleResult contains the outcome of query processing.
type HandleResult struct {
	ResponseBytes []byte     // Serialized DNS response, nil if the request is silently dropped
	Source        string     // Origin of response ("authority", "resolved", "nxdomain", "servfail", "formerr", "parse-error")
	Parsed        *dns.Packet // Parsed request, nil if ParsedOK is false
	ParsedOK      bool
}

// Handle processes one DNS request and returns its response.
//
// Processing steps:
//  1. Parse the raw request bytes.
//  2. A malformed request that still has a readable header gets FORMERR
//     with the original id; one that doesn't is silently dropped.
//  3. Forward the question to the resolver, under a timeout.
//  4. Re-encode with the client's id, QR=1, RA=1, truncating per
//     Packet.Write's own 512-byte budget.
func (h *QueryHandler) Handle(ctx context.Context, transport, src string, reqBytes []byte) HandleResult {
	start := time.Now()
	if h.Stats != nil {
		h.Stats.RecordQuery(transport)
	}

	req, err := dns.ParsePacket(dns.NewFixedBufferFrom(reqBytes))
	if err != nil {
		return h.handleParseError(reqBytes)
	}
	if len(req.Questions) == 0 {
		resp := errorPacket(req.Header.ID, nil, dns.RCodeFormErr)
		if h.Stats != nil {
			h.Stats.RecordError()
		}
		return HandleResult{ResponseBytes: h.encode(resp), Source: "formerr", Parsed: req, ParsedOK: true}
	}

	q := req.Questions[0]
	result := h.resolveWithTimeout(ctx, q.Name, q.Type)

	resp := &dns.Packet{
		Header:      dns.Header{ID: req.Header.ID},
		Questions:   req.Questions,
		Answers:     result.Answers,
		Authorities: result.Authorities,
		Additionals: result.Additionals,
	}
	resp.Header.SetQR(true)
	resp.Header.SetRA(true)
	resp.Header.SetAA(result.Header.AA())
	resp.Header.SetRCode(result.Header.RCode())

	source := classifySource(resp)
	h.logRequest(ctx, transport, src, req.Header.ID, q, len(reqBytes), source)

	if h.Stats != nil {
		h.Stats.RecordLatency(time.Since(start).Nanoseconds())
		switch source {
		case "nxdomain":
			h.Stats.RecordNXDOMAIN()
		case "servfail", "formerr":
			h.Stats.RecordError()
		}
	}

	return HandleResult{ResponseBytes: h.encode(resp), Source: source, Parsed: req, ParsedOK: true}
}

// resolveWithTimeout runs the resolver in a goroutine so a slow or wedged
// hop can't pin down the calling worker past Timeout.
func (h *QueryHandler) resolveWithTimeout(ctx context.Context, qname string, qtype dns.QueryType) *dns.Packet {
	resCh := make(chan *dns.Packet, 1)
	go func() { resCh <- h.Resolver.Resolve(ctx, qname, qtype) }()

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errorPacket(0, []dns.Question{{Name: qname, Type: qtype}}, dns.RCodeServFail)
	case <-timer.C:
		return errorPacket(0, []dns.Question{{Name: qname, Type: qtype}}, dns.RCodeServFail)
	case resp := <-resCh:
		return resp
	}
}

// handleParseError attempts to build a FORMERR response from a malformed
// request. A request whose 12-byte header doesn't even parse is silently
// dropped, per the propagation policy.
func (h *QueryHandler) handleParseError(reqBytes []byte) HandleResult {
	if len(reqBytes) < dns.HeaderSize {
		return HandleResult{Source: "parse-error", ParsedOK: false}
	}
	var hdr dns.Header
	if err := hdr.Read(dns.NewFixedBufferFrom(reqBytes)); err != nil {
		return HandleResult{Source: "parse-error", ParsedOK: false}
	}
	resp := errorPacket(hdr.ID, nil, dns.RCodeFormErr)
	return HandleResult{ResponseBytes: h.encode(resp), Source: "formerr", ParsedOK: false}
}

// errorPacket builds a QR=1 response carrying rcode and no answers.
func errorPacket(id uint16, questions []dns.Question, rcode dns.ResultCode) *dns.Packet {
	p := &dns.Packet{Header: dns.Header{ID: id}, Questions: questions}
	p.Header.SetQR(true)
	p.Header.SetRCode(rcode)
	return p
}

// classifySource labels a response for logging and stats.
func classifySource(p *dns.Packet) string {
	switch {
	case p.Header.RCode() == dns.RCodeServFail:
		return "servfail"
	case p.Header.RCode() == dns.RCodeNXDomain:
		return "nxdomain"
	case p.Header.AA():
		return "authority"
	default:
		return "resolved"
	}
}

// encode serializes p into a single UDP datagram, returning nil on error.
func (h *QueryHandler) encode(p *dns.Packet) []byte {
	buf := dns.NewFixedBuffer()
	if err := p.Write(buf, dns.MaxUDPPayloadSize); err != nil {
		if h.Logger != nil {
			h.Logger.Error("encode response failed", "error", err)
		}
		return nil
	}
	return buf.Bytes()[:buf.Pos()]
}

func (h *QueryHandler) logRequest(ctx context.Context, transport, src string, id uint16, q dns.Question, reqLen int, source string) {
	if h.Logger == nil || !h.Logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	h.Logger.DebugContext(ctx, "dns request",
		"request_id", uuid.NewString(),
		"transport", transport,
		"src", src,
		"id", id,
		"qname", q.Name,
		"qtype", q.Type.String(),
		"bytes", reqLen,
		"source", source,
	)
}
