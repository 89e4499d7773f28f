package eventlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/logger"
)

// ErrTailTimeout is returned when no terminal event arrived in time.
var ErrTailTimeout = errors.New("eventlog: timed out waiting for job to finish")

const maxLineSize = 16 << 20

// TailOptions controls how a log is followed.
type TailOptions struct {
	// PollInterval is the sleep between reads once the end of the file is reached.
	PollInterval time.Duration
	// Timeout bounds the whole tail. Zero means no limit.
	Timeout time.Duration
}

// LineFunc is called once per complete line. rec is the zero value when the
// line could not be decoded. Returning an error stops the tail.
type LineFunc func(line []byte, rec domain.EventRecord) error

// Tail reads the job's log from the beginning and follows it until a terminal
// event is seen, the timeout passes, fn fails or ctx is done. A log that does
// not exist yet is waited for.
func (l *Log) Tail(ctx context.Context, jobID string, opts TailOptions, fn LineFunc) error {
	path, err := l.Path(jobID)
	if err != nil {
		return err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}

	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	var (
		f       *os.File
		pending []byte
		chunk   = make([]byte, 32*1024)
	)
	defer func() {
		if f != nil {
			f.Close()
		}
	}()

	for {
		if f == nil {
			f, err = os.Open(path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to open event log: %w", err)
			}
		}

		if f != nil {
			for {
				n, rerr := f.Read(chunk)
				pending = append(pending, chunk[:n]...)
				done, err := drainLines(ctx, &pending, fn)
				if err != nil || done {
					return err
				}
				if len(pending) > maxLineSize {
					return fmt.Errorf("event log line exceeds %d bytes", maxLineSize)
				}
				if rerr == io.EOF || n == 0 {
					break
				}
				if rerr != nil {
					return fmt.Errorf("failed to read event log: %w", rerr)
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrTailTimeout
		case <-ticker.C:
		}
	}
}

// drainLines hands every complete line in buf to fn and keeps the trailing
// partial line. It reports whether a terminal event was delivered.
func drainLines(ctx context.Context, buf *[]byte, fn LineFunc) (bool, error) {
	for {
		idx := bytes.IndexByte(*buf, '\n')
		if idx < 0 {
			return false, nil
		}
		line := (*buf)[:idx]
		rest := (*buf)[idx+1:]

		if len(bytes.TrimSpace(line)) > 0 {
			var rec domain.EventRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				logger.CtxWarn(ctx, "Skipping malformed event line: %v", err)
				rec = domain.EventRecord{}
			}
			out := make([]byte, len(line))
			copy(out, line)
			if err := fn(out, rec); err != nil {
				return false, err
			}
			if rec.Event.IsTerminal() {
				return true, nil
			}
		}
		*buf = append((*buf)[:0], rest...)
	}
}
