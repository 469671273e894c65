package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/sonroyaalmerol/ldap-proxy/internal/api/handlers"
	"github.com/sonroyaalmerol/ldap-proxy/internal/api/middleware"

	_ "github.com/sonroyaalmerol/ldap-proxy/internal/api/docs"
)

// RegisterRoutes mounts the management API's read-only endpoints plus
// the Swagger UI. apiKey gates everything under /api/v1 when non-empty.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, apiKey string) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	if apiKey != "" {
		v1.Use(middleware.RequireAPIKey(apiKey))
	}

	v1.GET("/healthz", h.Healthz)
	v1.GET("/stats", h.Stats)
	v1.GET("/config", h.GetConfig)
	v1.GET("/audit/recent", h.RecentAudit)
}
