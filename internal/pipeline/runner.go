package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/eventlog"
	"github.com/timmy/zip2text/internal/logger"
	"github.com/timmy/zip2text/internal/ocr"
)

const noImagesMessage = "Process complete. No supported image files (.jpg, .png, .webp) were found."

// Releaser frees a job's queue claim.
type Releaser interface {
	Release(jobID string) error
}

// HistoryRecorder keeps an informational record of job progress.
type HistoryRecorder interface {
	MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error
	MarkFinished(ctx context.Context, jobID string, outcome domain.JobOutcome) error
}

// ResultStore archives a job's final text and returns where it can be read.
type ResultStore interface {
	SaveResult(ctx context.Context, jobID, text string) (string, error)
}

// RunnerConfig holds the stage settings for a JobRunner.
type RunnerConfig struct {
	WorkspaceRoot string
	Limits        ExtractLimits
}

// JobRunner drives one job through extract, scan, OCR and aggregate, and
// always emits a terminal event and cleans up afterwards.
type JobRunner struct {
	events     eventlog.Sink
	releaser   Releaser
	extractor  *ZipExtractor
	scanner    ImageScanner
	ocr        *OcrRunner
	aggregator TextAggregator

	history HistoryRecorder
	results ResultStore
}

// NewJobRunner creates a runner. history and results may be attached later
// with WithHistory and WithResultStore.
func NewJobRunner(events eventlog.Sink, releaser Releaser, factory ocr.Factory, cfg *RunnerConfig) *JobRunner {
	if cfg == nil {
		cfg = &RunnerConfig{}
	}
	return &JobRunner{
		events:    events,
		releaser:  releaser,
		extractor: NewZipExtractor(cfg.WorkspaceRoot, cfg.Limits),
		ocr:       NewOcrRunner(factory),
	}
}

// WithHistory records job progress in h.
func (r *JobRunner) WithHistory(h HistoryRecorder) *JobRunner {
	r.history = h
	return r
}

// WithResultStore archives final text in s.
func (r *JobRunner) WithResultStore(s ResultStore) *JobRunner {
	r.results = s
	return r
}

// Run processes desc to completion. It never panics and never returns an
// error: every failure ends as a JOB_FAILED event. The workspace, the queue
// claim and the uploaded archive are removed on every path.
func (r *JobRunner) Run(ctx context.Context, desc domain.JobDescriptor) (outcome domain.JobOutcome) {
	ctx = logger.SetJobID(ctx, desc.JobID)
	em := eventlog.NewEmitter(r.events, desc.JobID)
	start := time.Now()

	var workspace string
	defer func() {
		if p := recover(); p != nil {
			logger.FromContext(ctx).WithField("stack", string(debug.Stack())).Errorf("Job panicked: %v", p)
			msg := fmt.Sprintf("An unexpected error occurred: %v", p)
			em.Error(ctx, domain.EventJobFailed, msg, nil)
			outcome = domain.JobOutcome{Status: domain.JobStatusFailed, Message: msg}
		}

		r.cleanup(ctx, desc, workspace)

		outcome.CompletedAt = time.Now()
		if r.history != nil {
			if err := r.history.MarkFinished(ctx, desc.JobID, outcome); err != nil {
				logger.FromContext(ctx).WithError(err).Warn("Failed to record job outcome")
			}
		}
		logger.With(logger.Fields{"image_count": outcome.ImageCount, "failed_count": outcome.FailedCount}).
			WithStatus(string(outcome.Status)).WithSince(start).Info(ctx, "Job finished")
	}()

	if r.history != nil {
		if err := r.history.MarkRunning(ctx, desc.JobID, start); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to record job start")
		}
	}

	return r.run(ctx, em, desc, &workspace)
}

func (r *JobRunner) run(ctx context.Context, em *eventlog.Emitter, desc domain.JobDescriptor, workspace *string) domain.JobOutcome {
	name := desc.OriginalFilename
	if name == "" {
		name = filepath.Base(desc.ZipFilePath)
	}
	em.Info(ctx, domain.EventJobStarted, "Processing new job for file: "+name, nil)

	ws, err := r.extractor.Extract(ctx, em, desc.ZipFilePath)
	if err != nil {
		return r.fail(ctx, em, err)
	}
	*workspace = ws

	images, err := r.scanner.Scan(ctx, em, ws)
	if err != nil {
		return r.fail(ctx, em, err)
	}
	if len(images) == 0 {
		em.Warning(ctx, domain.EventJobWarning, noImagesMessage, nil)
		return domain.JobOutcome{Status: domain.JobStatusWarning, Message: noImagesMessage}
	}

	results, err := r.ocr.Process(ctx, em, images)
	if err != nil {
		return r.fail(ctx, em, err)
	}

	text := r.aggregator.Aggregate(ctx, em, images, results)

	outcome := domain.JobOutcome{
		Status:      domain.JobStatusCompleted,
		ImageCount:  len(images),
		FailedCount: results.FailedCount(),
		Message:     "Successfully processed all images.",
	}
	data := eventlog.Data{
		"final_text":   text,
		"image_count":  outcome.ImageCount,
		"failed_count": outcome.FailedCount,
	}
	if r.results != nil {
		url, err := r.results.SaveResult(ctx, desc.JobID, text)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to archive job result")
		} else {
			outcome.ResultURL = url
			data["result_url"] = url
		}
	}

	em.Success(ctx, domain.EventJobCompleted, outcome.Message, data)
	return outcome
}

func (r *JobRunner) fail(ctx context.Context, em *eventlog.Emitter, err error) domain.JobOutcome {
	var msg string
	switch {
	case errors.Is(err, ErrInvalidArchive):
		msg = "A validation error occurred: " + err.Error()
	case errors.Is(err, ErrOCRUnavailable):
		msg = "OCR service unavailable: " + err.Error()
	default:
		msg = "An unexpected error occurred: " + err.Error()
	}
	logger.FromContext(ctx).WithError(err).Error("Job failed")
	em.Error(ctx, domain.EventJobFailed, msg, nil)
	return domain.JobOutcome{Status: domain.JobStatusFailed, Message: msg}
}

func (r *JobRunner) cleanup(ctx context.Context, desc domain.JobDescriptor, workspace string) {
	log := logger.FromContext(ctx)

	if workspace != "" {
		if err := os.RemoveAll(workspace); err != nil {
			log.WithError(err).Errorf("Failed to remove workspace %s", workspace)
		}
	}
	if err := r.releaser.Release(desc.JobID); err != nil {
		log.WithError(err).Error("Failed to release queue claim")
	}
	if desc.ZipFilePath != "" {
		if err := os.Remove(desc.ZipFilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.WithError(err).Errorf("Failed to remove uploaded archive %s", desc.ZipFilePath)
		}
	}
}
