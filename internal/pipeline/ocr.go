package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/eventlog"
	"github.com/timmy/zip2text/internal/logger"
	"github.com/timmy/zip2text/internal/ocr"
	_ "golang.org/x/image/webp"
)

// OcrRunner sends each image to the OCR capability in order. One image
// failing never stops the others.
type OcrRunner struct {
	factory ocr.Factory
}

func NewOcrRunner(factory ocr.Factory) *OcrRunner {
	return &OcrRunner{factory: factory}
}

// Process returns one outcome per path. The only error it returns is
// ErrOCRUnavailable, before any image has been attempted.
func (r *OcrRunner) Process(ctx context.Context, em *eventlog.Emitter, paths []string) (domain.OcrResultMap, error) {
	ctx = logger.SetStage(ctx, "ocr")
	total := len(paths)
	em.Info(ctx, domain.EventOCRPipeline, fmt.Sprintf("Starting OCR process for %d images...", total), nil)

	client, err := r.factory(ctx)
	if err != nil {
		em.Error(ctx, domain.EventOCRPipeline,
			"Configuration error: Could not initialize OCR service. Please check server credentials. Error: "+err.Error(), nil)
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}

	start := time.Now()
	results := make(domain.OcrResultMap, total)
	for i, path := range paths {
		name := filepath.Base(path)
		progress := fmt.Sprintf("(%d/%d)", i+1, total)

		em.Info(ctx, domain.EventOCRStarted, progress+" Processing: "+name,
			eventlog.Data{"filename": name, "current": i + 1, "total": total})

		text, err := r.processOne(ctx, client, path)
		results[path] = domain.OcrOutcome{Path: path, Text: text, Err: err}
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField("filename", name).Error("OCR failed for image")
			em.Error(ctx, domain.EventOCRFailed, fmt.Sprintf("%s Failed to process: %s. Error: %v", progress, name, err),
				eventlog.Data{"filename": name, "error": err.Error()})
			continue
		}
		em.Success(ctx, domain.EventOCRSuccess, progress+" Successfully processed: "+name,
			eventlog.Data{"filename": name})
	}

	failed := results.FailedCount()
	em.Success(ctx, domain.EventOCRPipeline, "Finished processing all images.",
		eventlog.Data{"succeeded": total - failed, "failed": failed})
	logger.With(logger.Fields{"failed": failed, "provider": client.Name()}).
		WithCount(total).WithSince(start).Info(ctx, "OCR finished")
	return results, nil
}

func (r *OcrRunner) processOne(ctx context.Context, client ocr.Client, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read image: %w", err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "jpeg" {
		format = "jpg"
	}

	// dimensions are informational; undecodable files still go to the provider
	if cfg, kind, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		logger.FromContext(ctx).WithFields(logger.Fields{
			"filename": filepath.Base(path),
			"width":    cfg.Width,
			"height":   cfg.Height,
			"decoded":  kind,
			logger.FieldSize: len(data),
		}).Debug("Sending image to OCR")
	} else {
		logger.CtxWarn(ctx, "Could not decode image header for %s: %v", filepath.Base(path), err)
	}

	return client.DetectText(ctx, data, format)
}
