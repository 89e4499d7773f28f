package domain

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a conversion job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusWarning   JobStatus = "warning"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions follow s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusWarning, JobStatusFailed:
		return true
	}
	return false
}

// JobDescriptor is the queue payload for one submitted archive.
// It is immutable once written to the queue.
type JobDescriptor struct {
	JobID            string    `json:"job_id"`
	OriginalFilename string    `json:"original_filename"`
	ZipFilePath      string    `json:"zip_file_path"`
	SubmittedAt      time.Time `json:"submitted_at"`
	Status           JobStatus `json:"status"`
}

// ValidJobID reports whether id can be used as a single path segment.
func ValidJobID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`+"\x00")
}

// JobRecord is the optional history row kept for each job.
// It is informational only and never used to coordinate work.
type JobRecord struct {
	ID               string     `gorm:"type:text;primaryKey" json:"id"`
	OriginalFilename string     `gorm:"type:text;not null" json:"original_filename"`
	Status           JobStatus  `gorm:"type:text;default:pending;index" json:"status"`
	ImageCount       int        `gorm:"default:0" json:"image_count"`
	FailedCount      int        `gorm:"default:0" json:"failed_count"`
	Message          string     `json:"message,omitempty"`
	ResultURL        string     `json:"result_url,omitempty"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName returns the database table name for JobRecord.
func (JobRecord) TableName() string {
	return "job_records"
}

// JobOutcome summarises how a job ended.
type JobOutcome struct {
	Status      JobStatus
	ImageCount  int
	FailedCount int
	Message     string
	ResultURL   string
	CompletedAt time.Time
}
