package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/eventlog"
	"github.com/timmy/zip2text/internal/ocr"
)

type zipEntry struct {
	name string
	body string
}

func writeZip(t *testing.T, dir, name string, entries []zipEntry) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func newEventLog(t *testing.T) *eventlog.Log {
	t.Helper()
	l, err := eventlog.New(filepath.Join(t.TempDir(), "events"))
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func readEvents(t *testing.T, l *eventlog.Log, jobID string) []domain.EventRecord {
	t.Helper()
	records, err := l.ReadAll(jobID)
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func eventNames(records []domain.EventRecord) []domain.EventName {
	names := make([]domain.EventName, len(records))
	for i, r := range records {
		names[i] = r.Event
	}
	return names
}

func countEvents(records []domain.EventRecord, name domain.EventName) int {
	n := 0
	for _, r := range records {
		if r.Event == name {
			n++
		}
	}
	return n
}

// stubOCR returns the image body as text, or an error for bodies listed in fail.
type stubOCR struct {
	mu    sync.Mutex
	fail  map[string]string
	calls []string
}

func (s *stubOCR) Name() string { return "stub" }

func (s *stubOCR) DetectText(ctx context.Context, image []byte, format string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, string(image))
	if reason, ok := s.fail[string(image)]; ok {
		return "", errors.New(reason)
	}
	return string(image), nil
}

func stubFactory(s *stubOCR) ocr.Factory {
	return func(context.Context) (ocr.Client, error) { return s, nil }
}

type fakeReleaser struct {
	mu       sync.Mutex
	released []string
}

func (f *fakeReleaser) Release(jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, jobID)
	return nil
}

type fakeHistory struct {
	started  map[string]time.Time
	finished map[string]domain.JobOutcome
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{started: map[string]time.Time{}, finished: map[string]domain.JobOutcome{}}
}

func (h *fakeHistory) MarkRunning(_ context.Context, jobID string, at time.Time) error {
	h.started[jobID] = at
	return nil
}

func (h *fakeHistory) MarkFinished(_ context.Context, jobID string, o domain.JobOutcome) error {
	h.finished[jobID] = o
	return nil
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
