package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/logger"
)

var (
	// ErrInvalidUpload is returned for uploads that are not ZIP archives.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrTooLarge is returned when an upload exceeds the configured cap.
	ErrTooLarge = errors.New("upload too large")
)

// JobQueue accepts descriptors for processing.
type JobQueue interface {
	Submit(ctx context.Context, desc domain.JobDescriptor) error
}

// HistoryCreator records newly submitted jobs.
type HistoryCreator interface {
	Create(ctx context.Context, record *domain.JobRecord) error
}

// SubmissionConfig holds configuration for the submission service
type SubmissionConfig struct {
	UploadDir string
	MaxBytes  int64
}

// SubmissionService stores uploaded archives and enqueues them.
type SubmissionService struct {
	queue     JobQueue
	history   HistoryCreator
	uploadDir string
	maxBytes  int64
	now       func() time.Time
	newID     func() string
}

// NewSubmissionService creates a new submission service.
// history may be nil when job history is disabled.
func NewSubmissionService(queue JobQueue, history HistoryCreator, cfg *SubmissionConfig) (*SubmissionService, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &SubmissionService{
		queue:     queue,
		history:   history,
		uploadDir: cfg.UploadDir,
		maxBytes:  cfg.MaxBytes,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}, nil
}

// Submit stores the archive read from r and enqueues a job for it.
// It returns the new job id.
func (s *SubmissionService) Submit(ctx context.Context, filename string, r io.Reader) (string, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".zip") {
		return "", fmt.Errorf("%w: %q is not a .zip file", ErrInvalidUpload, filename)
	}

	jobID := s.newID()
	ctx = logger.SetJobID(ctx, jobID)
	name := SanitizeFilename(filename)
	path := filepath.Join(s.uploadDir, jobID+"_"+name)

	if err := s.store(path, r); err != nil {
		os.Remove(path)
		return "", err
	}
	if err := checkZip(path); err != nil {
		os.Remove(path)
		return "", err
	}

	submitted := s.now().UTC()
	if s.history != nil {
		record := &domain.JobRecord{
			ID:               jobID,
			OriginalFilename: filename,
			Status:           domain.JobStatusPending,
			SubmittedAt:      submitted,
		}
		if err := s.history.Create(ctx, record); err != nil {
			logger.CtxWarn(ctx, "Failed to record job history: %v", err)
		}
	}

	desc := domain.JobDescriptor{
		JobID:            jobID,
		OriginalFilename: filename,
		ZipFilePath:      path,
		SubmittedAt:      submitted,
		Status:           domain.JobStatusPending,
	}
	if err := s.queue.Submit(ctx, desc); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	logger.CtxInfo(ctx, "Accepted upload %s", filename)
	return jobID, nil
}

func (s *SubmissionService) store(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return fmt.Errorf("failed to store upload: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}
	return f.Sync()
}

func checkZip(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("failed to inspect upload: %w", err)
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return nil
		}
	}
	return fmt.Errorf("%w: content is %s, not a ZIP archive", ErrInvalidUpload, mtype.String())
}

// SanitizeFilename reduces name to a safe single path segment.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload.zip"
	}
	return out
}
