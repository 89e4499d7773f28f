package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/zip2text/internal/domain"
	"gorm.io/gorm"
)

// ErrJobNotFound is returned when no history row exists for a job.
var ErrJobNotFound = errors.New("job not found")

// JobRepository stores informational job history rows.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts the row for a newly submitted job.
func (r *JobRepository) Create(ctx context.Context, record *domain.JobRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID retrieves a job row by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.JobRecord, error) {
	var record domain.JobRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkRunning records that the worker started the job.
func (r *JobRepository) MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	return r.update(ctx, jobID, map[string]interface{}{
		"status":     domain.JobStatusRunning,
		"started_at": startedAt,
	})
}

// MarkFinished records the terminal outcome of a job.
func (r *JobRepository) MarkFinished(ctx context.Context, jobID string, outcome domain.JobOutcome) error {
	return r.update(ctx, jobID, map[string]interface{}{
		"status":       outcome.Status,
		"image_count":  outcome.ImageCount,
		"failed_count": outcome.FailedCount,
		"message":      outcome.Message,
		"result_url":   outcome.ResultURL,
		"completed_at": outcome.CompletedAt,
	})
}

// ListRecent returns the most recently submitted jobs, newest first.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]domain.JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []domain.JobRecord
	err := r.db.WithContext(ctx).Order("submitted_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

func (r *JobRepository) update(ctx context.Context, jobID string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&domain.JobRecord{}).Where("id = ?", jobID).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}
