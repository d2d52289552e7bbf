package http

import (
	"github.com/gin-gonic/gin"

	"github.com/cdematcher/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		match := v1.Group("/match")
		{
			match.POST("", handler.Match)
			match.POST("/datasets", handler.MatchDatasets)
		}

		reports := v1.Group("/reports")
		{
			reports.GET("/:fingerprint", handler.GetReport)
			reports.POST("/:fingerprint/export", handler.ExportReport)
		}

		v1.GET("/matchers", handler.ListMatchers)
		v1.GET("/concepts", handler.ListConcepts)
		v1.GET("/datasets/:collection", handler.ListDatasets)
	}

	return router
}
