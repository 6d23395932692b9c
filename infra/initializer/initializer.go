// Package initializer assembles the application from configuration: logger,
// database, gateways, event bus, notifier, identity, response cache and the
// scheduled jobs.
package initializer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/amirasaad/usdledger/infra"
	infracache "github.com/amirasaad/usdledger/infra/cache"
	"github.com/amirasaad/usdledger/infra/provider/amqpnotifier"
	"github.com/amirasaad/usdledger/infra/provider/kyc"
	infrarepo "github.com/amirasaad/usdledger/infra/repository"
	"github.com/amirasaad/usdledger/infra/scheduler"
	"github.com/amirasaad/usdledger/pkg/app"
	"github.com/amirasaad/usdledger/pkg/cache"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/provider/identity"
	"github.com/amirasaad/usdledger/pkg/provider/notification"
	"gorm.io/gorm"
)

// Resources is a running application and everything that must be released
// on shutdown.
type Resources struct {
	App       *app.App
	DB        *gorm.DB
	Scheduler *scheduler.Scheduler
	Logger    *slog.Logger

	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

// Initialize builds every dependency, seeds fee schedules and platform
// accounts, and registers the scheduled jobs without starting them.
func Initialize(ctx context.Context, cfg *config.App) (res *Resources, err error) {
	logger := NewLogger(cfg.Log, os.Stdout)
	res = &Resources{Logger: logger}
	defer func() {
		if err != nil {
			_ = res.Close()
			res = nil
		}
	}()

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		return res, fmt.Errorf("database: %w", err)
	}
	res.DB = db
	if sqlDB, err := db.DB(); err == nil {
		res.onClose("database", sqlDB)
	}

	gateways, err := newGateways(cfg.Gateways, logger)
	if err != nil {
		return res, fmt.Errorf("gateways: %w", err)
	}

	bus, busCloser, err := NewEventBus(cfg, logger)
	if err != nil {
		return res, fmt.Errorf("event bus: %w", err)
	}
	res.onClose("event bus", busCloser)

	notifier, err := newNotifier(cfg.Notification, logger)
	if err != nil {
		return res, fmt.Errorf("notifier: %w", err)
	}
	if c, ok := notifier.(io.Closer); ok {
		res.onClose("notifier", c)
	}

	store, err := newResponseCache(ctx, cfg.Redis, logger)
	if err != nil {
		return res, fmt.Errorf("response cache: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		res.onClose("response cache", c)
	}

	a, err := app.New(&app.Deps{
		Uow:      infrarepo.NewUoW(db),
		Gateways: gateways,
		Verifier: newVerifier(cfg.KYC, logger),
		Notifier: notifier,
		EventBus: bus,
		Cache:    store,
		Logger:   logger,
	}, cfg)
	if err != nil {
		return res, err
	}
	if err := a.Bootstrap(ctx); err != nil {
		return res, fmt.Errorf("bootstrap: %w", err)
	}
	res.App = a

	res.Scheduler, err = newScheduler(a, logger)
	if err != nil {
		return res, err
	}
	res.onClose("scheduler", closeFunc(func() error {
		res.Scheduler.Stop()
		return nil
	}))
	return res, nil
}

func (r *Resources) onClose(name string, c io.Closer) {
	r.closers = append(r.closers, namedCloser{name, c})
}

// Close releases resources in reverse order of creation.
func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		nc := r.closers[i]
		if err := nc.c.Close(); err != nil {
			r.Logger.Error("close failed", "resource", nc.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", nc.name, err))
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// newNotifier publishes to RabbitMQ when NOTIFICATION_AMQP_URL is set and
// logs notifications otherwise.
func newNotifier(cfg *config.Notification, logger *slog.Logger) (notification.Notifier, error) {
	if cfg == nil || cfg.AMQPURL == "" {
		logger.Info("notifications go to the log")
		return notification.NewLogNotifier(logger), nil
	}
	return amqpnotifier.Dial(cfg, logger)
}

func newVerifier(cfg *config.KYC, logger *slog.Logger) identity.Verifier {
	if cfg == nil || cfg.URL == "" {
		logger.Warn("KYC_URL not set; every user is treated as verified")
		return identity.AllowAll{}
	}
	return kyc.New(cfg, logger)
}

// newResponseCache keeps Idempotency-Key responses in Redis when configured
// so replays work across instances.
func newResponseCache(ctx context.Context, cfg *config.Redis, logger *slog.Logger) (cache.ResponseCache, error) {
	if cfg == nil || cfg.URL == "" {
		return memoryCache{infracache.NewMemoryCache(cacheSweepInterval)}, nil
	}
	return infracache.NewRedisCache(ctx, cfg, logger)
}

// memoryCache adapts MemoryCache.Close to io.Closer.
type memoryCache struct{ *infracache.MemoryCache }

func (m memoryCache) Close() error {
	m.MemoryCache.Close()
	return nil
}
