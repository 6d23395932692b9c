// Package scheduler runs the periodic ledger jobs: reconciliation and the
// pending transaction poller.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Schedule string
	// Timeout bounds a single run; zero means no deadline.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler wraps a cron instance. Overlapping runs of a job are skipped and
// panics are recovered and logged.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *slog.Logger) *Scheduler {
	logger = logger.With("component", "scheduler")
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job. An empty schedule disables it.
func (s *Scheduler) Add(job Job) error {
	if job.Schedule == "" {
		s.logger.Info("job disabled", "job", job.Name)
		return nil
	}
	if _, err := s.cron.AddFunc(job.Schedule, s.wrap(job)); err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name, job.Schedule, err)
	}
	s.logger.Info("scheduled job", "job", job.Name, "schedule", job.Schedule)
	return nil
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		ctx := s.ctx
		if job.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, job.Timeout)
			defer cancel()
		}
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			s.logger.Error("job failed", "job", job.Name, "error", err, "took", time.Since(start))
			return
		}
		s.logger.Debug("job done", "job", job.Name, "took", time.Since(start))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
