package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/ocr"
)

type runnerFixture struct {
	dir       string
	events    interface{ ReadAll(string) ([]domain.EventRecord, error) }
	runner    *JobRunner
	releaser  *fakeReleaser
	workspace string
}

func newRunnerFixture(t *testing.T, factory ocr.Factory) *runnerFixture {
	t.Helper()
	dir := t.TempDir()
	l := newEventLog(t)
	rel := &fakeReleaser{}
	ws := filepath.Join(dir, "workspaces")
	return &runnerFixture{
		dir:       dir,
		events:    l,
		releaser:  rel,
		workspace: ws,
		runner:    NewJobRunner(l, rel, factory, &RunnerConfig{WorkspaceRoot: ws}),
	}
}

func (f *runnerFixture) descriptor(t *testing.T, jobID string, entries []zipEntry) domain.JobDescriptor {
	t.Helper()
	return domain.JobDescriptor{
		JobID:            jobID,
		OriginalFilename: "photos.zip",
		ZipFilePath:      writeZip(t, f.dir, jobID+"_photos.zip", entries),
		SubmittedAt:      time.Now(),
		Status:           domain.JobStatusPending,
	}
}

func (f *runnerFixture) assertCleanedUp(t *testing.T, desc domain.JobDescriptor) {
	t.Helper()
	if left := dirEntries(t, f.workspace); len(left) != 0 {
		t.Errorf("workspace left behind: %v", left)
	}
	if _, err := os.Stat(desc.ZipFilePath); !os.IsNotExist(err) {
		t.Errorf("uploaded archive still present")
	}
	if len(f.releaser.released) != 1 || f.releaser.released[0] != desc.JobID {
		t.Errorf("released = %v", f.releaser.released)
	}
}

func (f *runnerFixture) records(t *testing.T, jobID string) []domain.EventRecord {
	t.Helper()
	records, err := f.events.ReadAll(jobID)
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestRunnerCompletesWithPerImageFailure(t *testing.T) {
	stub := &stubOCR{fail: map[string]string{"second": "rate limited"}}
	f := newRunnerFixture(t, stubFactory(stub))
	history := newFakeHistory()
	f.runner.WithHistory(history)

	desc := f.descriptor(t, "job1", []zipEntry{
		{name: "b/img2.png", body: "second"},
		{name: "b/img10.jpg", body: "third"},
		{name: "a.JPG", body: "first"},
		{name: "notes.txt", body: "ignored"},
	})

	outcome := f.runner.Run(context.Background(), desc)
	if outcome.Status != domain.JobStatusCompleted || outcome.ImageCount != 3 || outcome.FailedCount != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	f.assertCleanedUp(t, desc)

	if got := strings.Join(stub.calls, ","); got != "first,second,third" {
		t.Errorf("OCR call order = %s", got)
	}

	records := f.records(t, "job1")
	if records[0].Event != domain.EventJobStarted || records[0].Message != "Processing new job for file: photos.zip" {
		t.Errorf("first event = %+v", records[0])
	}

	var pairs []string
	aggregationSeen := false
	for _, r := range records {
		switch r.Event {
		case domain.EventOCRStarted, domain.EventOCRSuccess, domain.EventOCRFailed:
			if aggregationSeen {
				t.Errorf("%s after AGGREGATION", r.Event)
			}
			pairs = append(pairs, r.Message)
		case domain.EventAggregation:
			aggregationSeen = true
		}
	}
	wantPairs := []string{
		"(1/3) Processing: a.JPG",
		"(1/3) Successfully processed: a.JPG",
		"(2/3) Processing: img2.png",
		"(2/3) Failed to process: img2.png. Error: rate limited",
		"(3/3) Processing: img10.jpg",
		"(3/3) Successfully processed: img10.jpg",
	}
	if strings.Join(pairs, "\n") != strings.Join(wantPairs, "\n") {
		t.Errorf("OCR events:\n%s\nwant:\n%s", strings.Join(pairs, "\n"), strings.Join(wantPairs, "\n"))
	}

	last := records[len(records)-1]
	if last.Event != domain.EventJobCompleted || last.Severity != domain.SeveritySuccess {
		t.Fatalf("last event = %+v", last)
	}
	if !strings.Contains(string(last.Data), `[Error processing img2.png: rate limited]`) {
		t.Errorf("final text lacks placeholder: %s", last.Data)
	}

	if _, ok := history.started["job1"]; !ok {
		t.Error("history start not recorded")
	}
	if history.finished["job1"].Status != domain.JobStatusCompleted {
		t.Errorf("history outcome = %+v", history.finished["job1"])
	}
}

func TestRunnerWarnsWithoutImages(t *testing.T) {
	tests := []struct {
		name    string
		entries []zipEntry
	}{
		{"only documents", []zipEntry{{name: "a.txt", body: "x"}, {name: "b.pdf", body: "y"}}},
		{"empty archive", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubOCR{}
			f := newRunnerFixture(t, stubFactory(stub))
			desc := f.descriptor(t, "job1", tt.entries)

			outcome := f.runner.Run(context.Background(), desc)
			if outcome.Status != domain.JobStatusWarning {
				t.Fatalf("status = %s", outcome.Status)
			}
			f.assertCleanedUp(t, desc)

			records := f.records(t, "job1")
			if n := countEvents(records, domain.EventOCRPipeline); n != 0 {
				t.Errorf("%d OCR_PIPELINE events emitted", n)
			}
			last := records[len(records)-1]
			if last.Event != domain.EventJobWarning || last.Message != noImagesMessage {
				t.Errorf("last event = %+v", last)
			}
			if len(stub.calls) != 0 {
				t.Errorf("OCR called %d times", len(stub.calls))
			}
		})
	}
}

func TestRunnerFailsOnInvalidArchive(t *testing.T) {
	f := newRunnerFixture(t, stubFactory(&stubOCR{}))
	path := filepath.Join(f.dir, "job1_bad.zip")
	if err := os.WriteFile(path, []byte("definitely not zip"), 0644); err != nil {
		t.Fatal(err)
	}
	desc := domain.JobDescriptor{JobID: "job1", OriginalFilename: "bad.zip", ZipFilePath: path, Status: domain.JobStatusPending}

	outcome := f.runner.Run(context.Background(), desc)
	if outcome.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s", outcome.Status)
	}
	f.assertCleanedUp(t, desc)

	records := f.records(t, "job1")
	last := records[len(records)-1]
	if last.Event != domain.EventJobFailed || last.Message != "A validation error occurred: Uploaded file is not a valid ZIP archive." {
		t.Errorf("last event = %+v", last)
	}
}

func TestRunnerFailsWhenOCRUnavailable(t *testing.T) {
	factory := func(context.Context) (ocr.Client, error) {
		return nil, errors.New("credentials missing")
	}
	f := newRunnerFixture(t, factory)
	desc := f.descriptor(t, "job1", []zipEntry{{name: "a.png", body: "x"}})

	outcome := f.runner.Run(context.Background(), desc)
	if outcome.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s", outcome.Status)
	}
	f.assertCleanedUp(t, desc)

	records := f.records(t, "job1")
	if n := countEvents(records, domain.EventOCRStarted); n != 0 {
		t.Errorf("%d images attempted", n)
	}
	names := eventNames(records)
	if names[len(names)-2] != domain.EventOCRPipeline || records[len(records)-2].Severity != domain.SeverityError {
		t.Errorf("events = %v", names)
	}
	if names[len(names)-1] != domain.EventJobFailed {
		t.Errorf("last event = %s", names[len(names)-1])
	}
}

type panickingOCR struct{}

func (panickingOCR) Name() string { return "panic" }
func (panickingOCR) DetectText(context.Context, []byte, string) (string, error) {
	panic("decoder exploded")
}

func TestRunnerRecoversFromPanic(t *testing.T) {
	factory := func(context.Context) (ocr.Client, error) { return panickingOCR{}, nil }
	f := newRunnerFixture(t, factory)
	history := newFakeHistory()
	f.runner.WithHistory(history)
	desc := f.descriptor(t, "job1", []zipEntry{{name: "a.png", body: "x"}})

	outcome := f.runner.Run(context.Background(), desc)
	if outcome.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s", outcome.Status)
	}
	f.assertCleanedUp(t, desc)

	records := f.records(t, "job1")
	last := records[len(records)-1]
	if last.Event != domain.EventJobFailed || !strings.Contains(last.Message, "decoder exploded") {
		t.Errorf("last event = %+v", last)
	}
	if history.finished["job1"].Status != domain.JobStatusFailed {
		t.Errorf("history outcome = %+v", history.finished["job1"])
	}
}

type memoryResults struct {
	saved map[string]string
	err   error
}

func (m *memoryResults) SaveResult(_ context.Context, jobID, text string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.saved[jobID] = text
	return "https://results.example/" + jobID + ".txt", nil
}

func TestRunnerArchivesResult(t *testing.T) {
	for _, storeErr := range []error{nil, errors.New("bucket gone")} {
		f := newRunnerFixture(t, stubFactory(&stubOCR{}))
		store := &memoryResults{saved: map[string]string{}, err: storeErr}
		f.runner.WithResultStore(store)
		desc := f.descriptor(t, "job1", []zipEntry{{name: "a.png", body: "hello"}})

		outcome := f.runner.Run(context.Background(), desc)
		if outcome.Status != domain.JobStatusCompleted {
			t.Fatalf("status = %s", outcome.Status)
		}

		records := f.records(t, "job1")
		last := records[len(records)-1]
		hasURL := strings.Contains(string(last.Data), `"result_url"`)
		if storeErr == nil {
			if !hasURL || outcome.ResultURL == "" || !strings.HasSuffix(store.saved["job1"], "\nhello") {
				t.Errorf("result not archived: %+v %s", outcome, last.Data)
			}
		} else if hasURL || outcome.ResultURL != "" {
			t.Errorf("result_url set despite store failure: %s", last.Data)
		}
	}
}
