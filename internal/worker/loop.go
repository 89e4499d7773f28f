// Package worker runs queued jobs one at a time.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/logger"
)

// State is the loop's position in its Idle → Claiming → Running cycle.
type State string

const (
	StateIdle     State = "idle"
	StateClaiming State = "claiming"
	StateRunning  State = "running"
)

// Claimer hands out pending jobs.
type Claimer interface {
	PollAndClaim(ctx context.Context) (*domain.JobDescriptor, error)
}

// Runner processes one claimed job to completion.
type Runner interface {
	Run(ctx context.Context, desc domain.JobDescriptor) domain.JobOutcome
}

// Config holds loop timing.
type Config struct {
	// PollInterval is the pause after a job finished before claiming again.
	PollInterval time.Duration
	// IdleBackoff is the pause after finding the queue empty.
	IdleBackoff time.Duration
}

// Loop claims jobs and runs them sequentially until its context is done.
type Loop struct {
	claimer Claimer
	runner  Runner
	config  Config
	wake    <-chan struct{}

	mu    sync.RWMutex
	state State
}

// New creates a loop. Zero durations get defaults of 1s and 5s.
func New(claimer Claimer, runner Runner, config Config) *Loop {
	if config.PollInterval <= 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.IdleBackoff <= 0 {
		config.IdleBackoff = 5 * time.Second
	}
	return &Loop{
		claimer: claimer,
		runner:  runner,
		config:  config,
		state:   StateIdle,
	}
}

// WithWake lets signals on ch end an idle wait early. Polling remains the
// source of truth; a missed signal only costs latency.
func (l *Loop) WithWake(ch <-chan struct{}) *Loop {
	l.wake = ch
	return l
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Loop) setState(ctx context.Context, s State) {
	l.mu.Lock()
	prev := l.state
	l.state = s
	l.mu.Unlock()
	if prev != s {
		logger.FromContext(ctx).WithField(logger.FieldState, string(s)).Debugf("Worker %s -> %s", prev, s)
	}
}

// Step makes one claim attempt and, if a job was claimed, runs it to
// completion. The job itself is detached from ctx cancellation: once
// claimed it always finishes.
func (l *Loop) Step(ctx context.Context) (ran bool, err error) {
	l.setState(ctx, StateClaiming)
	defer l.setState(ctx, StateIdle)

	desc, err := l.claimer.PollAndClaim(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to poll queue: %w", err)
	}
	if desc == nil {
		return false, nil
	}

	l.setState(ctx, StateRunning)
	jobCtx := logger.SetJobID(context.WithoutCancel(ctx), desc.JobID)
	logger.CtxInfo(jobCtx, "Claimed job %s (%s)", desc.JobID, desc.OriginalFilename)

	l.runJob(jobCtx, *desc)
	return true, nil
}

// runJob isolates the loop from a runner that panics despite its own recovery.
func (l *Loop) runJob(ctx context.Context, desc domain.JobDescriptor) {
	defer func() {
		if p := recover(); p != nil {
			logger.FromContext(ctx).WithField("stack", string(debug.Stack())).Errorf("Runner panicked: %v", p)
		}
	}()
	outcome := l.runner.Run(ctx, desc)
	logger.With(logger.Fields{"image_count": outcome.ImageCount}).
		WithStatus(string(outcome.Status)).Info(ctx, "Job %s ended", desc.JobID)
}

// Run loops until ctx is cancelled. Cancellation is only observed between
// jobs.
func (l *Loop) Run(ctx context.Context) error {
	ctx = logger.SetComponent(ctx, "worker")
	logger.CtxInfo(ctx, "Worker started (poll interval %s, idle backoff %s)", l.config.PollInterval, l.config.IdleBackoff)

	for {
		if err := ctx.Err(); err != nil {
			logger.CtxInfo(ctx, "Worker stopping")
			return err
		}

		ran, err := l.Step(ctx)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Queue poll failed")
		}

		delay := l.config.IdleBackoff
		if ran {
			delay = l.config.PollInterval
		}
		if err := l.sleep(ctx, delay, !ran); err != nil {
			logger.CtxInfo(ctx, "Worker stopping")
			return err
		}
	}
}

func (l *Loop) sleep(ctx context.Context, d time.Duration, wakeable bool) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var wake <-chan struct{}
	if wakeable {
		wake = l.wake
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	case <-wake:
	}
	return nil
}
