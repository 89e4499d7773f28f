// Package queue implements a directory-backed job queue. An entry moves from
// pending/ to claimed/ by a single rename, which is the only point of
// coordination between the submitter and the worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/logger"
)

var (
	ErrInvalidJobID = errors.New("queue: invalid job id")
	ErrDuplicate    = errors.New("queue: job already queued")
)

const (
	tmpDir     = "tmp"
	pendingDir = "pending"
	claimedDir = "claimed"
	entryExt   = ".json"
)

// Queue is a file-backed job queue rooted at a directory.
type Queue struct {
	root string
}

// New creates the queue directories under root.
func New(root string) (*Queue, error) {
	for _, dir := range []string{tmpDir, pendingDir, claimedDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create queue directory %s: %w", dir, err)
		}
	}
	return &Queue{root: root}, nil
}

// PendingDir is the directory new entries appear in.
func (q *Queue) PendingDir() string {
	return filepath.Join(q.root, pendingDir)
}

func (q *Queue) entryPath(state, jobID string) string {
	return filepath.Join(q.root, state, jobID+entryExt)
}

// Submit persists desc as a pending entry. The descriptor is written and
// synced under tmp/ first and only then renamed into pending/, so pollers
// never see a partial file.
func (q *Queue) Submit(ctx context.Context, desc domain.JobDescriptor) error {
	if !domain.ValidJobID(desc.JobID) {
		return fmt.Errorf("%w: %q", ErrInvalidJobID, desc.JobID)
	}
	for _, state := range []string{pendingDir, claimedDir} {
		if _, err := os.Stat(q.entryPath(state, desc.JobID)); err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicate, desc.JobID)
		}
	}

	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("failed to encode job descriptor: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Join(q.root, tmpDir), desc.JobID+"-*"+entryExt)
	if err != nil {
		return fmt.Errorf("failed to create queue temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write job descriptor: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync job descriptor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close job descriptor: %w", err)
	}

	if err := os.Rename(tmpName, q.entryPath(pendingDir, desc.JobID)); err != nil {
		cleanup()
		return fmt.Errorf("failed to publish job descriptor: %w", err)
	}

	logger.CtxInfo(ctx, "Queued job %s (%s)", desc.JobID, desc.OriginalFilename)
	return nil
}

// PollAndClaim claims the first pending entry in lexicographic order.
// It returns nil when there is nothing to claim. Losing a rename race to
// another claimer is not an error; the next candidate is tried instead.
func (q *Queue) PollAndClaim(ctx context.Context) (*domain.JobDescriptor, error) {
	entries, err := os.ReadDir(q.PendingDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), entryExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		claimed := filepath.Join(q.root, claimedDir, name)
		err := os.Rename(filepath.Join(q.PendingDir(), name), claimed)
		if errors.Is(err, fs.ErrNotExist) {
			logger.CtxDebug(ctx, "Lost claim race for %s", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to claim %s: %w", name, err)
		}

		desc, err := readDescriptor(claimed)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Errorf("Discarding unreadable queue entry %s", name)
			os.Remove(claimed)
			continue
		}
		return desc, nil
	}
	return nil, nil
}

func readDescriptor(path string) (*domain.JobDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var desc domain.JobDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to decode job descriptor: %w", err)
	}
	if !domain.ValidJobID(desc.JobID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobID, desc.JobID)
	}
	return &desc, nil
}

// Release removes the claimed entry for jobID. Releasing an entry that is
// already gone is not an error.
func (q *Queue) Release(jobID string) error {
	if !domain.ValidJobID(jobID) {
		return fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	if err := os.Remove(q.entryPath(claimedDir, jobID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to release job %s: %w", jobID, err)
	}
	return nil
}

// Pending returns the number of pending entries.
func (q *Queue) Pending() (int, error) {
	entries, err := os.ReadDir(q.PendingDir())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), entryExt) {
			n++
		}
	}
	return n, nil
}
