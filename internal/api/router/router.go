package router

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/job-audit/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if err := deps.DB.HealthCheck(c.Request.Context()); err != nil {
			deps.Logger.Error("Health check failed", slog.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "audit-api-service",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "audit-api-service",
		})
	})

	auditHandler := handler.NewAuditHandler(deps)
	positionHandler := handler.NewPositionHandler(deps)

	a := r.Group("/audit")
	{
		a.POST("/create/closed", auditHandler.CreateClosed)
		a.POST("/create/open", auditHandler.CreateOpen)
		a.POST("/start/closed", auditHandler.StartClosed)
		a.POST("/start/open", auditHandler.StartOpen)

		a.GET("/closed", auditHandler.ListClosed)
		a.GET("/open", auditHandler.ListOpen)
		a.POST("/open", auditHandler.AddOpen)
		a.DELETE("/open/:id", auditHandler.DeleteOpen)

		a.POST("/results", auditHandler.Results)
	}

	r.POST("/scrape/results", auditHandler.Results)
	r.POST("/tasks/handle", auditHandler.HandleTask)

	positions := r.Group("/positions")
	{
		positions.PUT("/:id/status", positionHandler.UpdateStatus)
		// id is the scraped job id on the two routes below
		positions.PUT("/:id/promote", positionHandler.Promote)
		positions.DELETE("/:id", positionHandler.Delete)
	}

	return r
}
