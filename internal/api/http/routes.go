package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/che-controller/internal/metrics"
)

// SetupRoutes configures all HTTP routes for the CHE controller.
func SetupRoutes(router *gin.Engine, handlers *Handlers, met *metrics.Metrics) {
	router.GET("/health", handlers.Health)
	if met != nil {
		router.GET("/metrics", gin.WrapH(met.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		devices := v1.Group("/devices")
		{
			devices.GET("", handlers.ListDevices)
			devices.GET("/:cheName", handlers.GetDevice)
			devices.GET("/:cheName/work", handlers.GetWork)
			devices.POST("/:cheName/scan", handlers.Scan)
			devices.POST("/:cheName/button", handlers.Button)
		}

		v1.POST("/orders", handlers.ImportOrder)
		v1.POST("/inventory", handlers.ImportStock)
		v1.POST("/facility/import", handlers.ImportFacility)
	}
}

// RequestMetrics returns a middleware recording request counts and latency.
func RequestMetrics(met *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if met == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		met.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
