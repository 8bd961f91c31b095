package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"assetmanager/internal/middleware"
)

// Routes bundles the handlers mounted under /api.
type Routes struct {
	Auth           *AuthHandler
	Assets         *AssetHandler
	Events         *EventHandler
	PipelineAPIKey string
}

// Register mounts the health check and the /api/v1 routes on router.
func (rt Routes) Register(router *gin.Engine) {
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", rt.Auth.Register)
	auth.POST("/login", rt.Auth.Login)

	// Sensor feed, authenticated by API key instead of a user token.
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(rt.PipelineAPIKey))
	pipeline.POST("/assets/:id/data-points", rt.Assets.AddDataPoint)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	assets := protected.Group("/assets")
	assets.POST("", rt.Assets.RegisterAsset)
	assets.GET("/next-id", rt.Assets.NextAssetID)
	assets.GET("/:id", rt.Assets.GetAsset)
	assets.POST("/:id/data-points", rt.Assets.AddDataPoint)
	assets.GET("/:id/data-points/:index", rt.Assets.GetDataPoint)
	assets.POST("/:id/data-points/:index/approve", middleware.RequireApprover(), rt.Assets.ApproveDataPoint)
	assets.POST("/:id/data-points/:index/reject", middleware.RequireApprover(), rt.Assets.RejectDataPoint)

	protected.GET("/approvals", middleware.RequireApprover(), rt.Assets.ListPending)

	evts := protected.Group("/events")
	evts.GET("", rt.Events.ListEvents)
	evts.GET("/stream", rt.Events.StreamEvents)
}
