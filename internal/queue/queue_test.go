package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/timmy/zip2text/internal/domain"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func descriptor(id string) domain.JobDescriptor {
	return domain.JobDescriptor{
		JobID:            id,
		OriginalFilename: id + ".zip",
		ZipFilePath:      "/uploads/" + id + "_archive.zip",
		SubmittedAt:      time.Unix(1700000000, 0).UTC(),
		Status:           domain.JobStatusPending,
	}
}

func TestSubmitClaimRelease(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := q.Submit(ctx, descriptor("b")); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit(ctx, descriptor("a")); err != nil {
		t.Fatal(err)
	}
	if n, _ := q.Pending(); n != 2 {
		t.Fatalf("Pending() = %d", n)
	}

	tmp, _ := os.ReadDir(filepath.Join(q.root, tmpDir))
	if len(tmp) != 0 {
		t.Errorf("tmp/ not empty after submit: %d entries", len(tmp))
	}

	for _, want := range []string{"a", "b"} {
		got, err := q.PollAndClaim(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.JobID != want {
			t.Fatalf("claimed %+v, want %s", got, want)
		}
		exp := descriptor(want)
		if got.ZipFilePath != exp.ZipFilePath || got.OriginalFilename != exp.OriginalFilename ||
			!got.SubmittedAt.Equal(exp.SubmittedAt) || got.Status != exp.Status {
			t.Errorf("descriptor round trip: %+v", got)
		}
		if _, err := os.Stat(q.entryPath(claimedDir, want)); err != nil {
			t.Errorf("claimed marker missing: %v", err)
		}
		if err := q.Release(want); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(q.entryPath(claimedDir, want)); !os.IsNotExist(err) {
			t.Errorf("claimed marker still present after release")
		}
	}

	got, err := q.PollAndClaim(ctx)
	if err != nil || got != nil {
		t.Fatalf("empty queue returned %+v, %v", got, err)
	}
	if err := q.Release("a"); err != nil {
		t.Errorf("second release: %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := q.Submit(ctx, descriptor("../x")); !errors.Is(err, ErrInvalidJobID) {
		t.Errorf("err = %v, want ErrInvalidJobID", err)
	}
	if err := q.Submit(ctx, descriptor("dup")); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit(ctx, descriptor("dup")); !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestCorruptEntryIsDiscarded(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := os.WriteFile(filepath.Join(q.PendingDir(), "0-broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit(ctx, descriptor("good")); err != nil {
		t.Fatal(err)
	}

	got, err := q.PollAndClaim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.JobID != "good" {
		t.Fatalf("claimed %+v, want good", got)
	}
	if _, err := os.Stat(filepath.Join(q.root, claimedDir, "0-broken.json")); !os.IsNotExist(err) {
		t.Errorf("corrupt entry left in claimed/")
	}
}

func TestConcurrentClaimHasOneWinner(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		q := newTestQueue(t)
		if err := q.Submit(ctx, descriptor("only")); err != nil {
			t.Fatal(err)
		}

		const claimers = 8
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			wins  int
			start = make(chan struct{})
		)
		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				got, err := q.PollAndClaim(ctx)
				if err != nil {
					t.Error(err)
					return
				}
				if got != nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		close(start)
		wg.Wait()

		if wins != 1 {
			t.Fatalf("round %d: %d claimers won, want exactly 1", round, wins)
		}
	}
}
