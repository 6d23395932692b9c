// Package app wires the ledger services from their dependencies.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/amirasaad/usdledger/pkg/cache"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/domain/fee"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/eventbus"
	"github.com/amirasaad/usdledger/pkg/gateway"
	monitorhandler "github.com/amirasaad/usdledger/pkg/handler/monitor"
	"github.com/amirasaad/usdledger/pkg/provider/identity"
	"github.com/amirasaad/usdledger/pkg/provider/notification"
	"github.com/amirasaad/usdledger/pkg/repository"
	feesvc "github.com/amirasaad/usdledger/pkg/service/fee"
	"github.com/amirasaad/usdledger/pkg/service/ledger"
	"github.com/amirasaad/usdledger/pkg/service/monitor"
	"github.com/amirasaad/usdledger/pkg/service/reconciliation"
)

// Deps contains the infrastructure the services run on.
type Deps struct {
	Uow      repository.UnitOfWork
	Gateways *gateway.Registry
	Verifier identity.Verifier
	Notifier notification.Notifier
	EventBus eventbus.Bus
	// Cache stores Idempotency-Key responses.
	Cache  cache.ResponseCache
	Logger *slog.Logger
}

type App struct {
	Deps           *Deps
	Config         *config.App
	Fees           *feesvc.Engine
	Ledger         *ledger.Service
	Reconciliation *reconciliation.Service
	Monitor        *monitor.Service
}

func New(deps *Deps, cfg *config.App) (*App, error) {
	logger := deps.Logger
	if deps.Notifier == nil {
		deps.Notifier = notification.NewLogNotifier(logger)
	}
	if deps.EventBus == nil {
		deps.EventBus = eventbus.Nop{}
	}

	a := &App{
		Deps:   deps,
		Config: cfg,
		Fees:   feesvc.New(deps.Uow, logger.With("service", "fee")),
	}
	a.Ledger = ledger.New(ledger.Deps{
		Uow:      deps.Uow,
		Fees:     a.Fees,
		Gateways: deps.Gateways,
		Verifier: deps.Verifier,
		Bus:      deps.EventBus,
		Logger:   logger.With("service", "ledger"),
	}, ledger.ConfigFrom(cfg.Ledger, cfg.Poller))

	sources, err := reconciliation.SourcesFrom(deps.Gateways, a.sourceNames())
	if err != nil {
		return nil, fmt.Errorf("reconciliation sources: %w", err)
	}
	a.Reconciliation = reconciliation.New(
		deps.Uow,
		sources,
		deps.Notifier,
		cfg.Ledger.CommissionAccount,
		cfg.Reconciliation.Tolerance,
		logger,
	)

	a.Monitor = monitor.New(deps.Uow, deps.Notifier, monitor.ConfigFrom(cfg.Monitor), logger)
	monitorhandler.Register(deps.EventBus, a.Monitor, logger)
	return a, nil
}

// sourceNames keeps the configured reconciliation sources that are registered.
func (a *App) sourceNames() []string {
	registered := a.Deps.Gateways.Names()
	var names []string
	for _, n := range a.Config.Reconciliation.Sources {
		if slices.Contains(registered, n) {
			names = append(names, n)
			continue
		}
		a.Deps.Logger.Warn("reconciliation source not registered; skipped", "gateway", n)
	}
	return names
}

// Bootstrap seeds missing fee schedules from configuration and creates the
// platform accounts.
func (a *App) Bootstrap(ctx context.Context) error {
	if err := a.Fees.Seed(ctx, FeeDefaults(a.Config.Ledger)); err != nil {
		return fmt.Errorf("seed fees: %w", err)
	}
	return a.Ledger.Bootstrap(ctx)
}

// FeeDefaults maps the LEDGER_FEE_* settings to per-type schedules.
func FeeDefaults(cfg *config.Ledger) map[transaction.Type]fee.Fee {
	out := make(map[transaction.Type]fee.Fee)
	add := func(t transaction.Type, s *config.FeeSchedule) {
		if s == nil {
			return
		}
		out[t] = fee.Fee{Type: t, Flat: s.Flat, Percentage: s.Percentage}
	}
	add(transaction.TypeDeposit, cfg.DepositFee)
	add(transaction.TypeWithdrawal, cfg.WithdrawalFee)
	add(transaction.TypeTransfer, cfg.TransferFee)
	add(transaction.TypeTopUp, cfg.TopUpFee)
	return out
}
