// Package routers wires the HTTP surface: public API and private
// debug/metrics listeners.
package routers

import (
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/app"
	"github.com/bubblevault/bubble-backup-service/internal/middleware"
	"github.com/bubblevault/bubble-backup-service/internal/routers/api_router"
	"github.com/bubblevault/bubble-backup-service/pkg/limiter"

	"github.com/gin-gonic/gin"
)

var methodLimiters = limiter.NewMethodLimiter().AddBuckets(
	limiter.BucketRule{
		// Manual triggers and registrations hit the Bubble API; keep them
		// from hammering it.
		Key:          "/api/projects",
		FillInterval: time.Second,
		Capacity:     20,
		Quantum:      20,
	},
)

// NewRouter 创建公共 API 路由
func NewRouter(appContainer *app.App) *gin.Engine {

	cfg := appContainer.Config()

	r := gin.New()

	api := r.Group("/api")
	{
		api.Use(middleware.Tracer())
		api.Use(middleware.RateLimiter(methodLimiters))
		api.Use(middleware.ContextTimeout(time.Duration(cfg.Server.DefaultContextTimeout) * time.Second))
		api.Use(middleware.AccessLog(appContainer.Logger()))
		api.Use(middleware.Recovery(appContainer.Logger()))

		// 创建 Handlers（注入 App Container）
		healthHandler := api_router.NewHealthHandler(appContainer)
		versionHandler := api_router.NewVersionHandler(appContainer)
		projectHandler := api_router.NewProjectHandler(appContainer)
		backupHandler := api_router.NewBackupHandler(appContainer)

		api.GET("/health", healthHandler.Check)
		api.GET("/version", versionHandler.ServerVersion)

		api.POST("/projects", projectHandler.Register)
		api.GET("/projects", projectHandler.List)
		api.GET("/projects/:id", projectHandler.Get)
		api.PUT("/projects/:id", projectHandler.Update)
		api.DELETE("/projects/:id", projectHandler.Delete)
		api.POST("/projects/:id/pause", projectHandler.Pause)
		api.POST("/projects/:id/resume", projectHandler.Resume)
		api.POST("/projects/:id/rescan", projectHandler.Rescan)
		api.GET("/projects/:id/schedule", projectHandler.GetSchedule)
		api.PUT("/projects/:id/schedule", projectHandler.UpdateSchedule)

		api.POST("/projects/:id/backups", backupHandler.Trigger)
		api.GET("/projects/:id/backups", backupHandler.List)
		api.GET("/projects/:id/backups/stats", backupHandler.Stats)
		api.GET("/projects/:id/backups/:backupId", backupHandler.Get)
	}

	r.NoRoute(middleware.NoFound())

	return r
}
