package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/zip2text/internal/api/handler"
	"github.com/timmy/zip2text/internal/api/middleware"
	"github.com/timmy/zip2text/internal/config"
	"github.com/timmy/zip2text/internal/eventlog"
)

// Deps groups the collaborators the HTTP API serves.
type Deps struct {
	Submitter handler.Submitter
	Events    handler.EventTailer
	// History is optional; leave nil when job history is disabled.
	History handler.JobLookup
	Queue   handler.QueueDepth
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Deps, cfg *config.Config) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.Queue)
	jobHandler := handler.NewJobHandler(deps.Submitter, deps.Events, deps.History, eventlog.TailOptions{
		PollInterval: cfg.Stream.PollInterval,
		Timeout:      cfg.Stream.Timeout,
	})

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.POST("/jobs", jobHandler.Submit)
		v1.GET("/jobs/:id", jobHandler.Get)
		v1.GET("/jobs/:id/events", jobHandler.Events)
	}

	return r
}
