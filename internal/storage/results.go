package storage

import (
	"context"
	"path"
	"strings"

	"github.com/timmy/zip2text/internal/logger"
)

const resultContentType = "text/plain; charset=utf-8"

// ResultArchive stores each job's aggregated text as <prefix>/<job_id>.txt.
type ResultArchive struct {
	store  ObjectStorage
	prefix string
}

// NewResultArchive wraps store. prefix may be empty.
func NewResultArchive(store ObjectStorage, prefix string) *ResultArchive {
	return &ResultArchive{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for jobID.
func (a *ResultArchive) Key(jobID string) string {
	return path.Join(a.prefix, jobID+".txt")
}

// SaveResult uploads text and returns its URL.
func (a *ResultArchive) SaveResult(ctx context.Context, jobID, text string) (string, error) {
	key := a.Key(jobID)
	if err := a.store.Upload(ctx, key, strings.NewReader(text), int64(len(text)), resultContentType); err != nil {
		return "", err
	}
	url := a.store.GetURL(key)
	logger.With(logger.Fields{"key": key}).WithSize(int64(len(text))).Info(ctx, "Archived job result")
	return url, nil
}
