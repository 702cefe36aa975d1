package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/watchtowerdns/watchtower/internal/api"
	"github.com/watchtowerdns/watchtower/internal/api/handlers"
	"github.com/watchtowerdns/watchtower/internal/authority"
	"github.com/watchtowerdns/watchtower/internal/cache"
	"github.com/watchtowerdns/watchtower/internal/config"
	"github.com/watchtowerdns/watchtower/internal/randsrc"
	"github.com/watchtowerdns/watchtower/internal/resolver"
)

// Runner orchestrates the DNS server startup, configuration, and shutdown.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run starts the DNS server with the given configuration.
//
// Server lifecycle:
//  1. Configure runtime (GOMAXPROCS based on workers setting)
//  2. Open the authority store and build the cache and resolver
//  3. Start the UDP listener
//  4. Wait for shutdown signal (SIGINT/SIGTERM)
//  5. Gracefully stop the server with timeout
func (r *Runner) Run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// Configure GOMAXPROCS based on worker settings
	desiredProcs := r.configureRuntime(cfg)
	workers := r.calculateWorkersPerSocket(cfg, desiredProcs)

	store, err := authority.Open(cfg.Authority.DBPath, r.logger)
	if err != nil {
		return fmt.Errorf("open authority store: %w", err)
	}
	defer store.Close()

	c := cache.NewWithEnabled(cfg.Cache.Enabled)

	res, err := r.buildResolver(cfg, store, c)
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	stats := NewDNSStats()
	h := &QueryHandler{Logger: r.logger, Resolver: res, Timeout: 4 * time.Second, Stats: stats}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	r.logStartup(cfg, addr, workers)

	udp := &UDPServer{Logger: r.logger, Handler: h, WorkersPerSocket: workers, SocketCount: desiredProcs}

	errCh := make(chan error, 1)
	go func() { errCh <- udp.Run(ctx, addr) }()

	var mgmt *api.Server
	if cfg.API.Enabled {
		mgmt = api.New(cfg, r.logger, store, c)
		mgmt.SetDNSStatsFunc(func() handlers.DNSStatsSnapshot {
			s := stats.Snapshot()
			return handlers.DNSStatsSnapshot{
				QueriesTotal: s.QueriesTotal,
				QueriesUDP:   s.QueriesUDP,
				ResponsesNX:  s.ResponsesNX,
				ResponsesErr: s.ResponsesErr,
				AvgLatencyMs: s.AvgLatencyMs,
			}
		})
		go func() {
			if r.logger != nil {
				r.logger.Info("management api listening", "addr", mgmt.Addr())
			}
			if err := mgmt.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("management api: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		// shutdown requested via signal
	case err := <-errCh:
		if err != nil {
			cancelRun()
			return err
		}
	}

	if mgmt != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := mgmt.Shutdown(shutdownCtx); err != nil && r.logger != nil {
			r.logger.Error("management api shutdown", "error", err)
		}
	}

	return udp.Stop(5 * time.Second)
}

// configureRuntime sets GOMAXPROCS based on worker configuration.
// Workers can reduce but never increase parallelism beyond the default.
func (r *Runner) configureRuntime(cfg *config.Config) int {
	baseProcs := runtime.GOMAXPROCS(0)
	if baseProcs <= 0 {
		baseProcs = 1
	}
	desiredProcs := baseProcs

	if cfg.Server.Workers.Mode == config.WorkersFixed {
		w := cfg.Server.Workers.Value
		if w <= 0 {
			w = 1
		}
		if w < desiredProcs {
			desiredProcs = w
		}
	}

	prev := runtime.GOMAXPROCS(desiredProcs)
	actual := runtime.GOMAXPROCS(0)
	if r.logger != nil {
		r.logger.Info("runtime", "gomaxprocs", actual, "prev", prev, "base", baseProcs)
	}
	return actual
}

// calculateWorkersPerSocket determines the per-socket worker pool size.
func (r *Runner) calculateWorkersPerSocket(cfg *config.Config, procs int) int {
	if cfg.Server.Workers.Mode == config.WorkersFixed && cfg.Server.Workers.Value > 0 {
		return cfg.Server.Workers.Value
	}
	workers := procs * 256
	if workers < 1 {
		workers = 1
	}
	if workers > DefaultWorkersPerSocket {
		workers = DefaultWorkersPerSocket
	}
	return workers
}

// buildResolver constructs the iterative resolver, loading root hints from
// the configured override file if one is set.
func (r *Runner) buildResolver(cfg *config.Config, store *authority.Store, c *cache.Cache) (*resolver.Resolver, error) {
	opts := []resolver.Option{}

	if cfg.Resolver.RootHintsFile != "" {
		hints, err := resolver.LoadRootHints(cfg.Resolver.RootHintsFile)
		if err != nil {
			return nil, fmt.Errorf("load root hints: %w", err)
		}
		opts = append(opts, resolver.WithRootHints(hints))
	}

	if cfg.Resolver.HopTimeout != "" {
		d, err := time.ParseDuration(cfg.Resolver.HopTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse resolver.hop_timeout: %w", err)
		}
		opts = append(opts, resolver.WithHopTimeout(d))
	}

	if cfg.Resolver.MaxHops > 0 {
		opts = append(opts, resolver.WithMaxHops(cfg.Resolver.MaxHops))
	}

	return resolver.New(store, c, randsrc.Default, r.logger, opts...), nil
}

// logStartup logs server configuration at startup.
func (r *Runner) logStartup(cfg *config.Config, addr string, workers int) {
	if r.logger != nil {
		r.logger.Info(
			"dns listening",
			"addr", addr,
			"workers_per_socket", workers,
			"authority_db", cfg.Authority.DBPath,
			"cache_enabled", cfg.Cache.Enabled,
		)
	}
}
