package routes

import (
	"github.com/gin-gonic/gin"

	"golang-workspace-automation/internal/api/handlers"
	"golang-workspace-automation/internal/api/middleware"
)

func SetupRoutes(router *gin.Engine, syncHandler *handlers.SyncHandler, workspaceHandler *handlers.WorkspaceHandler) {
	// Health check
	router.GET("/health", workspaceHandler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.WorkspaceContext())
	{
		v1.GET("/workspaces", workspaceHandler.ListWorkspaces)
		v1.DELETE("/workspaces/:identifier/cache", workspaceHandler.EvictWorkspaceCache)

		integrations := v1.Group("/integrations")
		{
			integrations.POST("/:id/sync", syncHandler.StartSync)
		}

		runs := v1.Group("/sync-runs")
		{
			runs.GET("/:taskId", syncHandler.GetRun)
			runs.DELETE("/:taskId", syncHandler.CancelRun)
		}
	}
}
