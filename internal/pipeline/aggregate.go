package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/eventlog"
	"github.com/timmy/zip2text/internal/logger"
)

const sourceHeader = "Source Image: "

var blockSeparator = "\n\n" + strings.Repeat("=", 80) + "\n\n"

var errNoResult = errors.New("no OCR result recorded")

// FormatText renders the results in the order of paths. The output depends
// only on its inputs.
func FormatText(paths []string, results domain.OcrResultMap) string {
	var b strings.Builder
	for i, path := range paths {
		if i > 0 {
			b.WriteString(blockSeparator)
		}
		outcome, ok := results[path]
		if !ok {
			outcome = domain.OcrOutcome{Path: path, Err: errNoResult}
		}
		name := filepath.Base(path)
		b.WriteString(sourceHeader)
		b.WriteString(name)
		b.WriteByte('\n')
		b.WriteString(strings.Repeat("-", utf8.RuneCountInString(name)+len(sourceHeader)))
		b.WriteByte('\n')
		b.WriteString(outcome.Content())
	}
	return b.String()
}

// TextAggregator wraps FormatText with progress events.
type TextAggregator struct{}

func (TextAggregator) Aggregate(ctx context.Context, em *eventlog.Emitter, paths []string, results domain.OcrResultMap) string {
	ctx = logger.SetStage(ctx, "aggregate")
	em.Info(ctx, domain.EventAggregation, "Aggregating text from all processed images...", nil)

	for _, path := range paths {
		if _, ok := results[path]; !ok {
			logger.CtxWarn(ctx, "Could not find OCR result for %s during aggregation", filepath.Base(path))
		}
	}
	text := FormatText(paths, results)

	em.Success(ctx, domain.EventAggregation, "Text aggregation complete.", nil)
	return text
}
