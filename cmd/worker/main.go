package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/timmy/zip2text/internal/config"
	"github.com/timmy/zip2text/internal/eventlog"
	"github.com/timmy/zip2text/internal/logger"
	"github.com/timmy/zip2text/internal/ocr"
	"github.com/timmy/zip2text/internal/pipeline"
	"github.com/timmy/zip2text/internal/queue"
	"github.com/timmy/zip2text/internal/repository"
	"github.com/timmy/zip2text/internal/storage"
	"github.com/timmy/zip2text/internal/worker"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.NewDefault("zip2text-worker")
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", "", "Path to config file")
	once := flag.Bool("once", false, "Process at most one queued job and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.SetComponent(ctx, "worker")

	jobQueue, err := queue.New(cfg.Paths.Queue)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open job queue")
	}
	events, err := eventlog.New(cfg.Paths.Events)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open event log directory")
	}

	runner := pipeline.NewJobRunner(events, jobQueue, ocr.NewFactory(ocr.Config{
		Provider:  cfg.OCR.Provider,
		APIKey:    cfg.OCR.APIKey,
		BaseURL:   cfg.OCR.BaseURL,
		Model:     cfg.OCR.Model,
		Languages: cfg.OCR.Languages,
		Timeout:   cfg.OCR.Timeout,
	}), &pipeline.RunnerConfig{
		WorkspaceRoot: cfg.Paths.Workspaces,
		Limits: pipeline.ExtractLimits{
			MaxEntries:    cfg.Extract.MaxEntries,
			MaxTotalBytes: cfg.Extract.MaxTotalBytes,
		},
	})

	if cfg.Database.Enabled {
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize database")
		}
		runner.WithHistory(repository.NewJobRepository(db))
	}

	if cfg.Storage.Enabled {
		objectStorage, err := storage.NewS3Storage(ctx, &storage.S3Config{
			Type:      storage.StorageType(cfg.Storage.Type),
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
		runner.WithResultStore(storage.NewResultArchive(objectStorage, cfg.Storage.Prefix))
	}

	loop := worker.New(jobQueue, runner, worker.Config{
		PollInterval: cfg.Worker.PollInterval,
		IdleBackoff:  cfg.Worker.IdleBackoff,
	})

	if *once {
		ran, err := loop.Step(ctx)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to claim job")
		}
		appLogger.WithField("ran", ran).Info("Single pass finished")
		return
	}

	if cfg.Worker.Watch {
		wake, err := worker.WatchQueue(ctx, jobQueue.PendingDir())
		if err != nil {
			appLogger.WithError(err).Warn("Queue watcher unavailable, polling only")
		} else {
			loop.WithWake(wake)
		}
	}

	appLogger.WithFields(logger.Fields{
		"queue":    cfg.Paths.Queue,
		"events":   cfg.Paths.Events,
		"provider": cfg.OCR.Provider,
	}).Info("Worker started")

	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		appLogger.WithError(err).Fatal("Worker loop stopped")
	}
	appLogger.Info("Worker exited")
}
