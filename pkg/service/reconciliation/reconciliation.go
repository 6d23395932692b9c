// Package reconciliation compares the ledger with the funds actually held on
// the payment rails. It reports; it never corrects balances.
package reconciliation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/money"
	"github.com/amirasaad/usdledger/pkg/provider/notification"
	"github.com/amirasaad/usdledger/pkg/repository"
	"github.com/shopspring/decimal"
)

// DiscrepancySubject is the subject of the alert sent when the books drift.
const DiscrepancySubject = "URGENT: Account Reconciliation Discrepancy"

// Source is a named rail that reports its pooled balance.
type Source struct {
	Name string
	gateway.BalanceSource
}

// SourcesFrom resolves names in registry to balance sources.
func SourcesFrom(registry *gateway.Registry, names []string) ([]Source, error) {
	out := make([]Source, 0, len(names))
	for _, name := range names {
		g, err := registry.Get(name)
		if err != nil {
			return nil, err
		}
		bs, ok := gateway.Capability[gateway.BalanceSource](g)
		if !ok {
			return nil, fmt.Errorf("gateway %s does not report a pooled balance", name)
		}
		out = append(out, Source{Name: name, BalanceSource: bs})
	}
	return out, nil
}

// Report holds the figures of one run.
type Report struct {
	Ledger     decimal.Decimal
	Actual     decimal.Decimal
	Difference decimal.Decimal
	Tolerance  decimal.Decimal
	Balanced   bool
}

type Service struct {
	uow        repository.UnitOfWork
	sources    []Source
	notifier   notification.Notifier
	commission string
	tolerance  decimal.Decimal
	logger     *slog.Logger
}

// New builds the service; tolerance is the default used by Run.
func New(
	uow repository.UnitOfWork,
	sources []Source,
	notifier notification.Notifier,
	commissionAccount string,
	tolerance decimal.Decimal,
	logger *slog.Logger,
) *Service {
	return &Service{
		uow:        uow,
		sources:    sources,
		notifier:   notifier,
		commission: commissionAccount,
		tolerance:  tolerance,
		logger:     logger.With("component", "reconciliation"),
	}
}

// TotalLedgerBalance is what the ledger says custody should hold: all user
// balances, the commission account, withdrawals and top-ups reserved but not
// yet paid out, and the fee withheld from transfer recipients, which stays in
// custody without being credited to any account.
func (s *Service) TotalLedgerBalance(ctx context.Context) (decimal.Decimal, error) {
	accounts, err := s.uow.AccountRepository()
	if err != nil {
		return decimal.Zero, err
	}
	txs, err := s.uow.TransactionRepository()
	if err != nil {
		return decimal.Zero, err
	}
	balances, err := accounts.SumBalances(ctx, repository.BalanceFilter{Users: true, Platforms: []string{s.commission}})
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum balances: %w", err)
	}
	inflight, err := txs.SumPendingTotals(ctx, transaction.TypeWithdrawal, transaction.TypeTopUp)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum reservations: %w", err)
	}
	withheld, err := txs.SumWithheldOnCredits(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum withheld transfer fees: %w", err)
	}
	return balances.Add(inflight).Add(withheld), nil
}

// ActualPooledBalance sums the pooled balances reported by every source.
func (s *Service) ActualPooledBalance(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, src := range s.sources {
		b, err := src.PooledBalance(ctx)
		if err != nil {
			return decimal.Zero, fmt.Errorf("pooled balance of %s: %w", src.Name, err)
		}
		s.logger.Debug("pooled balance", "source", src.Name, "balance", money.Format(b))
		total = total.Add(b)
	}
	return total, nil
}

// Check computes both figures without alerting.
func (s *Service) Check(ctx context.Context, tolerance decimal.Decimal) (Report, error) {
	ledger, err := s.TotalLedgerBalance(ctx)
	if err != nil {
		return Report{}, err
	}
	actual, err := s.ActualPooledBalance(ctx)
	if err != nil {
		return Report{}, err
	}
	diff := ledger.Sub(actual)
	return Report{
		Ledger:     ledger,
		Actual:     actual,
		Difference: diff,
		Tolerance:  tolerance,
		Balanced:   diff.Abs().LessThanOrEqual(tolerance),
	}, nil
}

// Reconcile reports whether the ledger and the rails agree within tolerance.
// A discrepancy is logged at error level and sent to the notifier.
func (s *Service) Reconcile(ctx context.Context, tolerance decimal.Decimal) (bool, error) {
	r, err := s.Check(ctx, tolerance)
	if err != nil {
		s.logger.Error("reconciliation could not run", "error", err)
		return false, err
	}
	s.logger.Info("reconciliation figures",
		"ledger", money.Format(r.Ledger),
		"actual", money.Format(r.Actual),
		"difference", r.Difference.String(),
	)
	if r.Balanced {
		return true, nil
	}
	s.ReportDiscrepancy(ctx, r)
	return false, nil
}

// ReportDiscrepancy logs r at error level and sends the high severity
// notification. Notifier failures are logged only.
func (s *Service) ReportDiscrepancy(ctx context.Context, r Report) {
	s.logger.Error("reconciliation discrepancy",
		"ledger", money.Format(r.Ledger),
		"actual", money.Format(r.Actual),
		"difference", r.Difference.String(),
		"tolerance", r.Tolerance.String(),
	)
	msg := notification.Message{
		Subject: DiscrepancySubject,
		Body: fmt.Sprintf("Ledger total %s USD differs from pooled balance %s USD by %s USD (tolerance %s).",
			money.Format(r.Ledger), money.Format(r.Actual), r.Difference.String(), r.Tolerance.String()),
		Severity: notification.SeverityHigh,
		Metadata: map[string]string{
			"ledger":     r.Ledger.String(),
			"actual":     r.Actual.String(),
			"difference": r.Difference.String(),
		},
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Error("discrepancy notification failed", "error", err)
	}
}

// Tolerance is the configured maximum drift.
func (s *Service) Tolerance() decimal.Decimal { return s.tolerance }

// Run reconciles with the configured tolerance. It is the scheduled entry point.
func (s *Service) Run(ctx context.Context) (bool, error) {
	return s.Reconcile(ctx, s.tolerance)
}
