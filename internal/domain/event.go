package domain

import "encoding/json"

// Severity classifies an event for the client.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeveritySuccess Severity = "SUCCESS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// EventName is a tag from the fixed event vocabulary.
type EventName string

const (
	EventJobStarted   EventName = "JOB_STARTED"
	EventValidation   EventName = "VALIDATION"
	EventExtraction   EventName = "EXTRACTION"
	EventImageScan    EventName = "IMAGE_SCAN"
	EventOCRPipeline  EventName = "OCR_PIPELINE"
	EventOCRStarted   EventName = "OCR_STARTED"
	EventOCRSuccess   EventName = "OCR_SUCCESS"
	EventOCRFailed    EventName = "OCR_FAILED"
	EventAggregation  EventName = "AGGREGATION"
	EventJobCompleted EventName = "JOB_COMPLETED"
	EventJobWarning   EventName = "JOB_WARNING"
	EventJobFailed    EventName = "JOB_FAILED"
)

// IsTerminal reports whether e ends a job's event sequence.
func (e EventName) IsTerminal() bool {
	switch e {
	case EventJobCompleted, EventJobFailed, EventJobWarning:
		return true
	}
	return false
}

// EventRecord is one line of a job's event log. Field order is part of the
// wire format.
type EventRecord struct {
	JobID     string          `json:"job_id"`
	Event     EventName       `json:"event"`
	Severity  Severity        `json:"severity"`
	Message   string          `json:"message"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
