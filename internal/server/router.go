package server

import (
	"context"

	"github.com/dumpit/dumpit/internal/config"
	"github.com/dumpit/dumpit/internal/file"
	"github.com/dumpit/dumpit/internal/logger"
	"github.com/dumpit/dumpit/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReadinessCheck pings one backing dependency for the readiness endpoint.
type ReadinessCheck struct {
	Component string
	Check     func(ctx context.Context) error
}

// Dependencies groups everything the HTTP router needs.
type Dependencies struct {
	Config      config.Config
	Logger      *zap.Logger
	FileService *file.Service
	Checks      []ReadinessCheck

	// UploadsDir is non-empty when the local blob store is selected; its
	// contents are served statically under the configured public base.
	UploadsDir string
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Logger != nil {
		router.Use(logger.Middleware(deps.Logger))
	}

	metrics.InitMetrics()
	router.Use(metrics.Middleware())
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	registerHealthRoutes(router, deps)

	if deps.UploadsDir != "" {
		router.Static(deps.Config.Storage.Local.PublicBase, deps.UploadsDir)
	}

	api := router.Group("/api")
	if deps.FileService != nil {
		file.RegisterRoutes(api, deps.FileService)
	}

	return router
}
