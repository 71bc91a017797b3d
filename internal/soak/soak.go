// Package soak schedules repeated, bounded-duration load test windows on a
// cron expression — the "run this experiment every night at 2am for an
// hour" mode, adapted from the teacher's single-job-per-entry scheduler to
// one recurring window per harness run.
package soak

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RunResult records the outcome of one scheduled window.
type RunResult struct {
	Status   string // "completed" or "skipped"
	Started  time.Time
	Duration time.Duration
}

// Scheduler fires runFn on a cron schedule, bounding each invocation to
// duration and skipping a tick if the previous window is still running.
type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	duration time.Duration
	runFn    func(ctx context.Context)

	mu      sync.Mutex
	running bool
	last    *RunResult
}

// New builds a Scheduler that invokes runFn for up to duration every time
// schedule fires.
func New(schedule string, duration time.Duration, runFn func(ctx context.Context), logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		logger:   logger.With("component", "soak_scheduler"),
		duration: duration,
		runFn:    runFn,
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug))))
	if _, err := c.AddFunc(schedule, s.fire); err != nil {
		return nil, fmt.Errorf("soak: adding cron schedule %q: %w", schedule, err)
	}
	s.cron = c
	return s, nil
}

// Start begins firing on the configured schedule.
func (s *Scheduler) Start() {
	s.logger.Info("soak scheduler started")
	s.cron.Start()
}

// Stop waits for an in-flight window to finish, or ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("soak scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("soak scheduler stop timed out")
	}
}

// LastResult reports the outcome of the most recent tick: a completed window,
// or a tick skipped because a window was still running. It is nil before
// the first tick.
func (s *Scheduler) LastResult() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("soak window already running, skipping this tick")
		s.mu.Lock()
		s.last = &RunResult{Status: "skipped", Started: time.Now()}
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.duration)
	defer cancel()

	s.logger.Info("soak window starting", "duration", s.duration)
	s.runFn(ctx)
	elapsed := time.Since(started)

	s.mu.Lock()
	s.last = &RunResult{Status: "completed", Started: started, Duration: elapsed}
	s.mu.Unlock()
	s.logger.Info("soak window finished", "duration", elapsed)
}
