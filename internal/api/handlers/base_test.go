// Package handlers_test provides behavior tests for the API handlers package.
package handlers_test

import (
	"log/slog"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/watchtowerdns/watchtower/internal/api/handlers"
	"github.com/watchtowerdns/watchtower/internal/authority"
	"github.com/watchtowerdns/watchtower/internal/cache"
	"github.com/watchtowerdns/watchtower/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()

	api := r.Group("/api/v1")
	api.GET("/health", h.Health)
	api.GET("/stats", h.Stats)
	api.GET("/cache", h.GetCache)
	api.GET("/authority", h.ListZones)
	api.POST("/authority", h.CreateZone)
	api.GET("/authority/:zone", h.GetZone)
	api.POST("/authority/:zone", h.AddRecord)

	return r
}

func createTestHandler(t *testing.T) *handlers.Handler {
	t.Helper()
	store, err := authority.Open(t.TempDir()+"/zones.db", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := handlers.New(&config.Config{}, nil)
	h.SetStore(store)
	h.SetCache(cache.New())
	return h
}
