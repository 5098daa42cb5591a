package updater

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/launcher/logging"
)

// Job describes a recurring update check.
type Job struct {
	URL         string
	ArchiveName string
	MinInterval time.Duration
	Timeout     time.Duration
	Listeners   []DownloadListener
}

// Scheduler re-runs an update Job on a cron schedule. Each run goes through
// the engine's rate limit, so a schedule tighter than the job interval does
// not fetch more often than the interval allows.
type Scheduler struct {
	engine   *Engine
	job      Job
	schedule cron.Schedule
	expr     string
	logger   logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewScheduler validates expr, a standard five-field cron expression or a
// descriptor such as "@every 1h", and returns a stopped Scheduler.
func NewScheduler(engine *Engine, expr string, job Job) (*Scheduler, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: engine cannot be nil", ErrInvalidSchedule)
	}
	if job.URL == "" {
		return nil, fmt.Errorf("%w: job URL cannot be empty", ErrInvalidSchedule)
	}
	schedule, err := parseSchedule(expr)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		engine:   engine,
		job:      job,
		schedule: schedule,
		expr:     expr,
		logger:   engine.logger,
	}, nil
}

// ValidateSchedule reports whether expr is a usable schedule.
func ValidateSchedule(expr string) error {
	_, err := parseSchedule(expr)
	return err
}

func parseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, expr, err)
	}
	return schedule, nil
}

// Start begins running the job on schedule until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New()
	s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.Run(s.ctx) }))
	s.cron.Start()
	s.started = true
	s.logger.Info("Update scheduler started", "schedule", s.expr, "url", s.job.URL)
}

// Stop halts the schedule and waits for a running check to return, or for
// ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	done := s.cron.Stop()
	s.started = false
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.logger.Info("Update scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("update scheduler stop: %w", ctx.Err())
	}
}

// Next returns the next activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run performs one check of the job.
func (s *Scheduler) Run(ctx context.Context) Outcome {
	outcome, err := s.engine.Update(ctx, s.job.URL, s.job.ArchiveName, s.job.MinInterval, s.job.Timeout, s.job.Listeners...)
	if err != nil {
		s.logger.Warn("Scheduled update check failed", "url", s.job.URL, "error", err)
	} else {
		s.logger.Debug("Scheduled update check finished", "url", s.job.URL, "outcome", outcome)
	}
	return outcome
}
