package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/queue"
)

type recordingHistory struct {
	records []*domain.JobRecord
	err     error
}

func (h *recordingHistory) Create(_ context.Context, record *domain.JobRecord) error {
	h.records = append(h.records, record)
	return h.err
}

type failingQueue struct{}

func (failingQueue) Submit(context.Context, domain.JobDescriptor) error {
	return errors.New("disk full")
}

func zipBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("page1.png")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("not really a png"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T, q JobQueue, h HistoryCreator, max int64) (*SubmissionService, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	svc, err := NewSubmissionService(q, h, &SubmissionConfig{UploadDir: dir, MaxBytes: max})
	if err != nil {
		t.Fatal(err)
	}
	return svc, dir
}

func TestSubmitQueuesArchive(t *testing.T) {
	q, err := queue.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	history := &recordingHistory{}
	svc, dir := newTestService(t, q, history, 0)

	jobID, err := svc.Submit(context.Background(), "Scans 2024.ZIP", bytes.NewReader(zipBytes(t)))
	if err != nil {
		t.Fatal(err)
	}
	if !domain.ValidJobID(jobID) {
		t.Fatalf("job id %q", jobID)
	}

	desc, err := q.PollAndClaim(context.Background())
	if err != nil || desc == nil {
		t.Fatalf("claim = %v, %v", desc, err)
	}
	if desc.JobID != jobID || desc.OriginalFilename != "Scans 2024.ZIP" || desc.Status != domain.JobStatusPending {
		t.Errorf("descriptor = %+v", desc)
	}
	if want := filepath.Join(dir, jobID+"_Scans_2024.ZIP"); desc.ZipFilePath != want {
		t.Errorf("zip path = %q, want %q", desc.ZipFilePath, want)
	}
	if _, err := os.Stat(desc.ZipFilePath); err != nil {
		t.Errorf("stored archive: %v", err)
	}
	if len(history.records) != 1 || history.records[0].ID != jobID {
		t.Errorf("history = %+v", history.records)
	}
}

func TestSubmitRejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     []byte
		max      int64
		want     error
	}{
		{"wrong extension", "scans.tar", []byte("x"), 0, ErrInvalidUpload},
		{"not a zip", "scans.zip", []byte("plain text pretending to be an archive"), 0, ErrInvalidUpload},
		{"too large", "scans.zip", bytes.Repeat([]byte("a"), 64), 16, ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := queue.New(t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			svc, dir := newTestService(t, q, nil, tt.max)

			_, err = svc.Submit(context.Background(), tt.filename, bytes.NewReader(tt.body))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("upload dir not cleaned: %d entries", len(entries))
			}
			if n, _ := q.Pending(); n != 0 {
				t.Errorf("pending = %d", n)
			}
		})
	}
}

func TestSubmitRemovesUploadWhenQueueFails(t *testing.T) {
	svc, dir := newTestService(t, failingQueue{}, nil, 0)

	_, err := svc.Submit(context.Background(), "a.zip", bytes.NewReader(zipBytes(t)))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("upload dir not cleaned: %d entries", len(entries))
	}
}

func TestSubmitIgnoresHistoryFailures(t *testing.T) {
	q, err := queue.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	svc, _ := newTestService(t, q, &recordingHistory{err: errors.New("db down")}, 0)

	if _, err := svc.Submit(context.Background(), "a.zip", bytes.NewReader(zipBytes(t))); err != nil {
		t.Fatal(err)
	}
	if n, _ := q.Pending(); n != 1 {
		t.Errorf("pending = %d", n)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.zip", "report.zip"},
		{"../../etc/passwd.zip", "passwd.zip"},
		{`C:\Users\me\scans.zip`, "scans.zip"},
		{"über scans.zip", "_ber_scans.zip"},
		{"..", "upload.zip"},
		{".hidden.zip", "hidden.zip"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
