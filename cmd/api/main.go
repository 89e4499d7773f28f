package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/zip2text/internal/api"
	"github.com/timmy/zip2text/internal/api/handler"
	"github.com/timmy/zip2text/internal/config"
	"github.com/timmy/zip2text/internal/eventlog"
	"github.com/timmy/zip2text/internal/logger"
	"github.com/timmy/zip2text/internal/queue"
	"github.com/timmy/zip2text/internal/repository"
	"github.com/timmy/zip2text/internal/service"
)

func main() {
	appLogger := logger.NewDefault("zip2text-api")
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	jobQueue, err := queue.New(cfg.Paths.Queue)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open job queue")
	}
	events, err := eventlog.New(cfg.Paths.Events)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open event log directory")
	}

	// Job history is optional; the queue and event log work without it
	var (
		lookup  handler.JobLookup
		creator service.HistoryCreator
	)
	if cfg.Database.Enabled {
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize database")
		}
		repo := repository.NewJobRepository(db)
		lookup, creator = repo, repo
	}

	submission, err := service.NewSubmissionService(jobQueue, creator, &service.SubmissionConfig{
		UploadDir: cfg.Paths.Uploads,
		MaxBytes:  cfg.Server.MaxUploadMB << 20,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize submission service")
	}

	router := api.SetupRouter(api.Deps{
		Submitter: submission,
		Events:    events,
		History:   lookup,
		Queue:     jobQueue,
	}, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Open event streams are cut off after the grace period
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
