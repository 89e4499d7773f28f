package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/eventlog"
	"github.com/timmy/zip2text/internal/logger"
	"github.com/timmy/zip2text/internal/repository"
	"github.com/timmy/zip2text/internal/service"
)

const (
	uploadField       = "file"
	streamEventName   = "new_log"
	streamTimeoutText = "Timed out waiting for job events"
)

// Submitter accepts an uploaded archive and returns its job id.
type Submitter interface {
	Submit(ctx context.Context, filename string, r io.Reader) (string, error)
}

// EventTailer follows a job's event log.
type EventTailer interface {
	Tail(ctx context.Context, jobID string, opts eventlog.TailOptions, fn eventlog.LineFunc) error
}

// JobLookup reads job history rows.
type JobLookup interface {
	GetByID(ctx context.Context, id string) (*domain.JobRecord, error)
}

// JobHandler handles job submission, progress streaming and status lookups.
type JobHandler struct {
	submitter Submitter
	events    EventTailer
	history   JobLookup
	stream    eventlog.TailOptions
	now       func() time.Time
}

// NewJobHandler creates a new job handler. history may be nil.
func NewJobHandler(submitter Submitter, events EventTailer, history JobLookup, stream eventlog.TailOptions) *JobHandler {
	return &JobHandler{
		submitter: submitter,
		events:    events,
		history:   history,
		stream:    stream,
		now:       time.Now,
	}
}

// Submit handles POST /api/v1/jobs.
func (h *JobHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	fh, err := c.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file part in the request"})
		return
	}
	if fh.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		logger.CtxError(ctx, "Failed to open upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer f.Close()

	jobID, err := h.submitter.Submit(ctx, fh.Filename, f)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	default:
		logger.CtxError(ctx, "Failed to submit job: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// Events handles GET /api/v1/jobs/:id/events as a Server-Sent Events stream.
// Every log line is forwarded unchanged as a new_log event.
func (h *JobHandler) Events(c *gin.Context) {
	jobID := c.Param("id")
	if !domain.ValidJobID(jobID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}
	ctx := logger.SetJobID(c.Request.Context(), jobID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	send := func(line []byte) {
		c.SSEvent(streamEventName, string(line))
		c.Writer.Flush()
	}

	err := h.events.Tail(ctx, jobID, h.stream, func(line []byte, _ domain.EventRecord) error {
		send(line)
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, eventlog.ErrTailTimeout):
		logger.CtxWarn(ctx, "Event stream timed out")
		line, merr := json.Marshal(domain.EventRecord{
			JobID:     jobID,
			Event:     domain.EventJobFailed,
			Severity:  domain.SeverityError,
			Message:   streamTimeoutText,
			Timestamp: h.now().Unix(),
		})
		if merr == nil {
			send(line)
		}
	case errors.Is(err, context.Canceled):
		logger.CtxDebug(ctx, "Client disconnected from event stream")
	default:
		logger.CtxError(ctx, "Event stream failed: %v", err)
	}
}

// Get handles GET /api/v1/jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	jobID := c.Param("id")
	if !domain.ValidJobID(jobID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job history is disabled"})
		return
	}

	record, err := h.history.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		logger.CtxError(c.Request.Context(), "Failed to load job %s: %v", jobID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return
	}

	c.JSON(http.StatusOK, record)
}
