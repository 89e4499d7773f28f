// Package pipeline holds the ordered processing stages of a job and the
// runner that drives them.
package pipeline

import "errors"

var (
	// ErrInvalidArchive marks uploads rejected because of their content.
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrWorkspace means the job's temporary directory could not be created.
	ErrWorkspace = errors.New("workspace unavailable")
	// ErrOCRUnavailable means no OCR client could be initialised for the job.
	ErrOCRUnavailable = errors.New("ocr unavailable")
)

// archiveError carries a human readable reason while matching
// ErrInvalidArchive and the underlying cause.
type archiveError struct {
	reason string
	cause  error
}

func invalidArchive(reason string, cause error) error {
	return &archiveError{reason: reason, cause: cause}
}

func (e *archiveError) Error() string {
	return e.reason
}

func (e *archiveError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrInvalidArchive}
	}
	return []error{ErrInvalidArchive, e.cause}
}
