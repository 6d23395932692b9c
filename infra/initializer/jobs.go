package initializer

import (
	"context"
	"log/slog"
	"time"

	"github.com/amirasaad/usdledger/infra/scheduler"
	"github.com/amirasaad/usdledger/pkg/app"
)

const (
	cacheSweepInterval = time.Minute
	reconcileTimeout   = 5 * time.Minute
	pollTimeout        = time.Minute
)

func newScheduler(a *app.App, logger *slog.Logger) (*scheduler.Scheduler, error) {
	s := scheduler.New(logger)
	jobs := []scheduler.Job{
		{
			Name:     "reconciliation",
			Schedule: a.Config.Reconciliation.Schedule,
			Timeout:  reconcileTimeout,
			Run: func(ctx context.Context) error {
				_, err := a.Reconciliation.Run(ctx)
				return err
			},
		},
		{
			Name:     "pending-poller",
			Schedule: a.Config.Poller.Schedule,
			Timeout:  pollTimeout,
			Run: func(ctx context.Context) error {
				_, err := a.Ledger.PollPending(ctx)
				return err
			},
		},
	}
	for _, j := range jobs {
		if err := s.Add(j); err != nil {
			return nil, err
		}
	}
	return s, nil
}
