// Package eventlog stores each job's progress as an append-only JSON Lines
// file and lets readers tail it while the job is running.
package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/timmy/zip2text/internal/domain"
)

// ErrInvalidJobID is returned when a job ID cannot name a log file.
var ErrInvalidJobID = errors.New("eventlog: invalid job id")

// Sink receives events for a job.
type Sink interface {
	Append(jobID string, event domain.EventName, severity domain.Severity, message string, data any) error
}

// Log is a directory of per-job event logs.
type Log struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// New creates the log directory if needed.
func New(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	return &Log{dir: dir, now: time.Now}, nil
}

// Path returns the log file for jobID.
func (l *Log) Path(jobID string) (string, error) {
	if !domain.ValidJobID(jobID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return filepath.Join(l.dir, jobID+".jsonl"), nil
}

// Append writes one record followed by a newline. The record is written with
// a single write on an O_APPEND descriptor, so a reader sees either the whole
// line or none of it.
func (l *Log) Append(jobID string, event domain.EventName, severity domain.Severity, message string, data any) error {
	path, err := l.Path(jobID)
	if err != nil {
		return err
	}

	rec := domain.EventRecord{
		JobID:     jobID,
		Event:     event,
		Severity:  severity,
		Message:   message,
		Timestamp: l.now().Unix(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
		rec.Data = raw
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append event: %w", err)
	}
	return f.Close()
}

// ReadAll returns every complete record currently in the job's log.
// A missing log yields no records.
func (l *Log) ReadAll(jobID string) ([]domain.EventRecord, error) {
	path, err := l.Path(jobID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	var records []domain.EventRecord
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		var rec domain.EventRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return records, fmt.Errorf("malformed event record: %w", err)
		}
		records = append(records, rec)
	}
	return records, sc.Err()
}
