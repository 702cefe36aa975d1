// Package api provides the REST management API for watchtower. It exposes
// health/stats endpoints and the authority and cache surface described in
// the zone management section of the project's documentation, via a
// Gin-based HTTP server.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/watchtowerdns/watchtower/internal/api/handlers"
	"github.com/watchtowerdns/watchtower/internal/api/middleware"
	"github.com/watchtowerdns/watchtower/internal/authority"
	"github.com/watchtowerdns/watchtower/internal/cache"
	"github.com/watchtowerdns/watchtower/internal/config"
)

// Server is the management REST API server: health/stats, the authority
// CRUD surface, and the cache snapshot.
//
// Security note: do not expose the API to untrusted networks without an
// API key configured.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
	handler    *handlers.Handler
}

// New builds the management API server, wiring it to the same authority
// store and cache the DNS listener uses.
func New(cfg *config.Config, logger *slog.Logger, store *authority.Store, c *cache.Cache) *Server {
	if cfg == nil {
		panic("api.New: cfg is nil")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.SlogRequestLogger(logger))

	h := handlers.New(cfg, logger)
	h.SetStore(store)
	h.SetCache(c)
	RegisterRoutes(engine, h, cfg)
	MountSPA(engine, logger)

	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{cfg: cfg, logger: logger, engine: engine, httpServer: httpServer, handler: h}
}

// SetDNSStatsFunc wires the UDP server's query-statistics snapshot into
// GET /stats.
func (s *Server) SetDNSStatsFunc(fn func() handlers.DNSStatsSnapshot) {
	s.handler.SetDNSStatsFunc(fn)
}

func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
