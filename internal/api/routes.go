package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/watchtowerdns/watchtower/internal/api/handlers"
	"github.com/watchtowerdns/watchtower/internal/api/middleware"
	"github.com/watchtowerdns/watchtower/internal/config"

	_ "github.com/watchtowerdns/watchtower/internal/api/docs" // swagger docs
)

// RegisterRoutes wires the management surface: health and stats, the
// authority CRUD endpoints, and the cache snapshot.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	if cfg != nil && cfg.API.APIKey != "" {
		api.Use(middleware.RequireAPIKey(cfg.API.APIKey))
	}

	api.GET("/health", h.Health)
	api.GET("/stats", h.Stats)

	api.GET("/cache", h.GetCache)

	api.GET("/authority", h.ListZones)
	api.POST("/authority", h.CreateZone)
	api.GET("/authority/:zone", h.GetZone)
	api.POST("/authority/:zone", h.AddRecord)
}
