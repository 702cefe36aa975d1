// Package handlers implements the REST API endpoint handlers for watchtower.
//
// @title watchtower Management API
// @version 1.0
// @description REST API for managing watchtower's authoritative zones and cache.
//
// @contact.name watchtower
// @contact.url https://github.com/watchtowerdns/watchtower
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:5380
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package handlers

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/watchtowerdns/watchtower/internal/authority"
	"github.com/watchtowerdns/watchtower/internal/cache"
	"github.com/watchtowerdns/watchtower/internal/config"
	"github.com/watchtowerdns/watchtower/internal/dns"
)

// Handler contains dependencies for API handlers.
type Handler struct {
	cfg       *config.Config
	logger    *slog.Logger
	startTime time.Time

	// Runtime components (set after the server starts).
	store *authority.Store
	cache *cache.Cache
	mu    sync.RWMutex

	// getDNSStatsFunc, when set, reports the UDP server's query counters
	// for GET /stats. Left nil in handler-only tests.
	getDNSStatsFunc func() DNSStatsSnapshot
}

// DNSStatsSnapshot mirrors internal/server's DNSStatsSnapshot shape without
// importing internal/server, which already imports internal/api's sibling
// packages in the other direction.
type DNSStatsSnapshot struct {
	QueriesTotal uint64
	QueriesUDP   uint64
	ResponsesNX  uint64
	ResponsesErr uint64
	AvgLatencyMs float64
}

// New creates a new Handler with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
	}
}

// SetStore sets the authority store backing the /authority endpoints.
func (h *Handler) SetStore(store *authority.Store) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.store = store
}

// SetCache sets the resolver cache backing GET /cache.
func (h *Handler) SetCache(c *cache.Cache) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache = c
}

// SetDNSStatsFunc sets the query-statistics callback used by GET /stats.
func (h *Handler) SetDNSStatsFunc(fn func() DNSStatsSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.getDNSStatsFunc = fn
}

func (h *Handler) authorityStore() *authority.Store {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.store
}

func (h *Handler) recordCache() *cache.Cache {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cache
}

func (h *Handler) dnsStats() DNSStatsSnapshot {
	h.mu.RLock()
	fn := h.getDNSStatsFunc
	h.mu.RUnlock()
	if fn == nil {
		return DNSStatsSnapshot{}
	}
	return fn()
}

// formatRecordValue renders a resource record's RDATA as a display string
// for the management surface.
func formatRecordValue(rr dns.ResourceRecord) string {
	switch r := rr.(type) {
	case dns.ARecord:
		return r.Addr.String()
	case dns.AAAARecord:
		return r.Addr.String()
	case dns.CNAMERecord:
		return r.Target
	case dns.NSRecord:
		return r.Host
	case dns.PTRRecord:
		return r.Target
	case dns.SOARecord:
		return fmt.Sprintf("%s %s %d", r.MName, r.RName, r.Serial)
	default:
		return fmt.Sprintf("%v", rr)
	}
}

// parseRecordType maps the recordtype field accepted by POST
// /authority/{zone} to a dns.QueryType, rejecting anything outside the
// A/AAAA/CNAME set the endpoint supports.
func parseRecordType(s string) (dns.QueryType, error) {
	switch s {
	case "A":
		return dns.TypeA, nil
	case "AAAA":
		return dns.TypeAAAA, nil
	case "CNAME":
		return dns.TypeCNAME, nil
	default:
		return 0, fmt.Errorf("unsupported recordtype %q: must be A, AAAA, or CNAME", s)
	}
}
