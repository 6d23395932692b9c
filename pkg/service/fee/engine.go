// Package fee computes fee quotes from the active fee schedule of each
// transaction type and manages those schedules.
package fee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/fee"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/money"
	"github.com/amirasaad/usdledger/pkg/repository"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Engine is the fee engine.
type Engine struct {
	uow    repository.UnitOfWork
	logger *slog.Logger
}

func New(uow repository.UnitOfWork, logger *slog.Logger) *Engine {
	return &Engine{uow: uow, logger: logger}
}

// Compute quotes amount against the active schedule of t.
func (e *Engine) Compute(ctx context.Context, t transaction.Type, amount decimal.Decimal) (fee.Quote, error) {
	if !amount.IsPositive() {
		return fee.Quote{}, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	repo, err := e.uow.FeeRepository()
	if err != nil {
		return fee.Quote{}, err
	}
	schedule, err := repo.GetActive(ctx, t)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveFeeConfig) {
			e.logger.Warn("no active fee schedule", "type", t)
		}
		return fee.Quote{}, err
	}
	return Apply(schedule, amount), nil
}

// Apply computes the quote of amount under schedule:
// fee = round_half_up(flat + percentage/100 * amount, 2).
func Apply(schedule *fee.Fee, amount decimal.Decimal) fee.Quote {
	charge := money.RoundHalfUp(schedule.Flat.Add(schedule.Percentage.Div(hundred).Mul(amount)))
	return fee.Quote{
		Amount: amount,
		Fee:    charge,
		Net:    amount.Sub(charge),
		Total:  amount.Add(charge),
	}
}

// Set makes flat/percentage the active schedule of t.
func (e *Engine) Set(ctx context.Context, t transaction.Type, flat, percentage decimal.Decimal) (*fee.Fee, error) {
	if !t.Valid() || t == transaction.TypeFee {
		return nil, fmt.Errorf("%w: unknown transaction type %q", domain.ErrValidation, t)
	}
	if flat.IsNegative() || percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: fee components out of range", domain.ErrValidation)
	}
	f := &fee.Fee{Type: t, Flat: flat, Percentage: percentage}
	err := e.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.FeeRepository()
		if err != nil {
			return err
		}
		return repo.Upsert(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("fee schedule updated", "type", t, "flat", flat.String(), "percentage", percentage.String())
	return f, nil
}

// Seed installs defaults for every type that has no active schedule yet.
// Existing schedules are left alone.
func (e *Engine) Seed(ctx context.Context, defaults map[transaction.Type]fee.Fee) error {
	return e.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.FeeRepository()
		if err != nil {
			return err
		}
		for t, d := range defaults {
			_, err := repo.GetActive(ctx, t)
			if err == nil {
				continue
			}
			if !errors.Is(err, domain.ErrNoActiveFeeConfig) {
				return err
			}
			f := &fee.Fee{Type: t, Flat: d.Flat, Percentage: d.Percentage}
			if err := repo.Upsert(ctx, f); err != nil {
				return fmt.Errorf("seed %s fee: %w", t, err)
			}
			e.logger.Info("seeded fee schedule", "type", t, "flat", d.Flat.String(), "percentage", d.Percentage.String())
		}
		return nil
	})
}

func (e *Engine) List(ctx context.Context) ([]*fee.Fee, error) {
	repo, err := e.uow.FeeRepository()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx)
}
