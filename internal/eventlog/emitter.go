package eventlog

import (
	"context"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/logger"
)

// Data is the optional structured payload attached to an event.
type Data map[string]any

// Emitter writes events for a single job. Write failures are logged and
// otherwise ignored so that a full disk never aborts a stage mid-way.
type Emitter struct {
	sink  Sink
	jobID string
}

// NewEmitter binds sink to jobID.
func NewEmitter(sink Sink, jobID string) *Emitter {
	return &Emitter{sink: sink, jobID: jobID}
}

// JobID returns the job the emitter is bound to.
func (e *Emitter) JobID() string {
	return e.jobID
}

// Emit appends one event. A nil data map is written as null.
func (e *Emitter) Emit(ctx context.Context, event domain.EventName, severity domain.Severity, message string, data Data) {
	var payload any
	if data != nil {
		payload = data
	}
	if err := e.sink.Append(e.jobID, event, severity, message, payload); err != nil {
		logger.FromContext(ctx).WithError(err).WithFields(logger.Fields{
			"event":    string(event),
			"severity": string(severity),
		}).Error("Failed to write job event")
	}
}

func (e *Emitter) Info(ctx context.Context, event domain.EventName, message string, data Data) {
	e.Emit(ctx, event, domain.SeverityInfo, message, data)
}

func (e *Emitter) Success(ctx context.Context, event domain.EventName, message string, data Data) {
	e.Emit(ctx, event, domain.SeveritySuccess, message, data)
}

func (e *Emitter) Warning(ctx context.Context, event domain.EventName, message string, data Data) {
	e.Emit(ctx, event, domain.SeverityWarning, message, data)
}

func (e *Emitter) Error(ctx context.Context, event domain.EventName, message string, data Data) {
	e.Emit(ctx, event, domain.SeverityError, message, data)
}
