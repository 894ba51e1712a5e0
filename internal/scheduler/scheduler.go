// Package scheduler re-runs a job on a fixed period with at most one run in flight.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tigerroll/spaceweather/internal/logger"
	"github.com/tigerroll/spaceweather/internal/metrics"
)

// Job is one cycle.
type Job func(ctx context.Context)

// Scheduler runs its job immediately on Start and then every interval. A tick
// that arrives while the previous run is still going is skipped and counted.
type Scheduler struct {
	interval time.Duration
	job      Job
	recorder metrics.Recorder

	running  sync.Mutex
	inFlight sync.WaitGroup
	skipped  atomic.Int64

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a Scheduler. A nil recorder discards skip counts.
func New(interval time.Duration, job Job, recorder metrics.Recorder) *Scheduler {
	if recorder == nil {
		recorder = metrics.NewNoOpRecorder()
	}
	return &Scheduler{interval: interval, job: job, recorder: recorder}
}

// Start launches the first run and the ticker. ctx bounds every run.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.stopped = make(chan struct{})

	logger.Infof("Scheduler: running every %s.", s.interval)
	s.tryRun("start")
	go s.loop(s.ctx, s.stopped)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tryRun("tick")
		}
	}
}

// TriggerNow starts a run unless one is in flight and reports whether it did.
func (s *Scheduler) TriggerNow() bool {
	s.mu.Lock()
	started := s.cancel != nil && s.ctx.Err() == nil
	s.mu.Unlock()
	if !started {
		return false
	}
	return s.tryRun("trigger")
}

func (s *Scheduler) tryRun(reason string) bool {
	if !s.running.TryLock() {
		n := s.skipped.Add(1)
		s.recorder.RecordSkippedCycle(s.ctx)
		logger.Warnf("Scheduler: previous cycle still running, skipping %s (%d skipped so far).", reason, n)
		return false
	}
	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		defer s.running.Unlock()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("Scheduler: panic recovered in %s cycle: %v", reason, r)
			}
		}()
		s.job(s.ctx)
	}()
	return true
}

// Skipped returns how many ticks were skipped.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// Stop stops the ticker, cancels the running cycle and waits for it until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		<-stopped
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Infof("Scheduler: stopped.")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
