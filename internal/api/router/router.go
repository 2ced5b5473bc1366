package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recipeshelf/import-service/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "recipe-import-service",
		})
	})

	importHandler := handler.NewImportHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		imports := v1.Group("/imports")
		{
			// POST /api/v1/imports - Submit a new import
			imports.POST("", importHandler.SubmitImport)

			// GET /api/v1/imports - List all tracked imports
			imports.GET("", importHandler.ListImports)

			// GET /api/v1/imports/active - The in-flight import, if any
			imports.GET("/active", importHandler.GetActiveImport)

			// GET /api/v1/imports/recent - Most recent finished import
			imports.GET("/recent", importHandler.GetRecentImport)

			// POST /api/v1/imports/resync - Drain the pending-import queue
			imports.POST("/resync", importHandler.TriggerResync)

			// GET /api/v1/imports/:job_id - Get import details
			imports.GET("/:job_id", importHandler.GetImport)

			// POST /api/v1/imports/:job_id/cancel - Cancel the live stream
			imports.POST("/:job_id/cancel", importHandler.CancelImport)

			// DELETE /api/v1/imports/:job_id - Dismiss the import
			imports.DELETE("/:job_id", importHandler.DismissImport)
		}
	}

	return r
}
