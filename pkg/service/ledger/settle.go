package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// settle moves a pending row to its terminal status and applies the balance
// effects of that outcome. It must run inside uow.Do; tx is updated in place.
//
//	deposit    completed: user +Amount, commission +Fee, custody +Total
//	deposit    failed:    nothing
//	withdrawal completed: commission +Fee, custody -Amount
//	withdrawal failed:    user +Total (reservation released, Delta 0)
//
// Top-ups settle like withdrawals.
func (s *Service) settle(
	ctx context.Context,
	uow repository.UnitOfWork,
	tx *transaction.Transaction,
	state gateway.State,
	reason string,
) error {
	to := transaction.StatusFailed
	if state == gateway.StateCompleted {
		to = transaction.StatusCompleted
	}
	if err := transaction.CheckTransition(tx.Status, to); err != nil {
		return err
	}
	accounts, err := uow.AccountRepository()
	if err != nil {
		return err
	}
	txs, err := uow.TransactionRepository()
	if err != nil {
		return err
	}
	commission, custody, err := s.platformIDs(ctx, accounts)
	if err != nil {
		return err
	}

	var (
		moves []move
		patch transaction.Patch
	)
	switch {
	case tx.Type == transaction.TypeDeposit && to == transaction.StatusCompleted:
		moves = []move{{tx.AccountID, tx.Amount}, {commission, tx.Fee}, {custody, tx.Total()}}
		delta := tx.Amount
		patch.Delta = &delta
	case tx.Type.IsOutflow() && to == transaction.StatusCompleted:
		moves = []move{{commission, tx.Fee}, {custody, tx.Amount.Neg()}}
	case tx.Type.IsOutflow() && to == transaction.StatusFailed:
		moves = []move{{tx.AccountID, tx.Delta.Neg()}}
		zero := decimal.Zero
		patch.Delta = &zero
	case tx.Type == transaction.TypeDeposit:
	default:
		return fmt.Errorf("%w: cannot settle %s transaction", domain.ErrInvalidTransition, tx.Type)
	}
	if to == transaction.StatusFailed {
		patch.FailureReason = &reason
	}

	if err := applyMoves(ctx, accounts, moves); err != nil {
		return err
	}
	if err := txs.Transition(ctx, tx.ID, tx.Status, to, patch); err != nil {
		return err
	}
	tx.Status = to
	tx.UpdatedAt = s.now()
	if patch.Delta != nil {
		tx.Delta = *patch.Delta
	}
	if patch.FailureReason != nil {
		tx.FailureReason = reason
	}
	return nil
}

type move struct {
	account uuid.UUID
	delta   decimal.Decimal
}

// applyMoves locks every touched account in ascending id order, then applies
// the non-zero deltas.
func applyMoves(ctx context.Context, accounts repository.AccountRepository, moves []move) error {
	ids := make([]uuid.UUID, 0, len(moves))
	for _, m := range moves {
		if !m.delta.IsZero() {
			ids = append(ids, m.account)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := accounts.LockForUpdate(ctx, ids...); err != nil {
		return err
	}
	for _, m := range moves {
		if m.delta.IsZero() {
			continue
		}
		if _, err := accounts.AdjustBalance(ctx, m.account, m.delta); err != nil {
			return fmt.Errorf("adjust account %s by %s: %w", m.account, m.delta.StringFixed(2), err)
		}
	}
	return nil
}

// HandleCallback applies a gateway's final status to the transaction it
// references. Delivering the same callback again is a no-op that returns the
// already-terminal row.
func (s *Service) HandleCallback(ctx context.Context, cb gateway.Callback) (*transaction.Transaction, error) {
	if cb.ExternalID == "" || !cb.Status.Final() {
		return nil, fmt.Errorf("%w: callback needs an external id and a final status", domain.ErrValidation)
	}
	logger := s.logger.With("op", "callback", "gateway", cb.Gateway, "external_id", cb.ExternalID, "status", cb.Status)

	var (
		tx      *transaction.Transaction
		changed bool
	)
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		txs, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		tx, err = txs.GetByExternalID(ctx, cb.Gateway, cb.ExternalID)
		if err != nil {
			return err
		}
		if tx.Status.IsTerminal() {
			return nil
		}
		changed = true
		return s.settle(ctx, uow, tx, cb.Status, cb.Reason)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("callback for unknown transaction")
		} else {
			logger.Error("callback failed", "error", err)
		}
		return nil, err
	}
	if !changed {
		logger.Info("🔁 callback for terminal transaction ignored", "transaction_id", tx.ID)
		return tx, nil
	}
	logger.Info("transaction finalized", "transaction_id", tx.ID, "final_status", tx.Status)
	s.emit(ctx, tx)
	return tx, nil
}

// PollReport summarises a PollPending run.
type PollReport struct {
	Checked   int
	Finalized int
	// StaleReservations counts reserved rows older than ReservedStaleAfter.
	StaleReservations int
}

// PollPending asks gateways about gateway_pending rows older than
// PendingMinAge and settles those that reached a final state. It also
// reports reservations that never reached a gateway.
func (s *Service) PollPending(ctx context.Context) (PollReport, error) {
	var report PollReport
	txs, err := s.uow.TransactionRepository()
	if err != nil {
		return report, err
	}
	now := s.now()
	pending, err := txs.ListPending(ctx, transaction.StatusGatewayPending, now.Add(-s.cfg.PendingMinAge), s.cfg.PollBatch)
	if err != nil {
		return report, err
	}
	for _, tx := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		g, err := s.gateways.Get(tx.Gateway)
		if err != nil {
			s.logger.Warn("pending transaction on unregistered gateway", "transaction_id", tx.ID, "gateway", tx.Gateway)
			continue
		}
		checker, ok := gateway.Capability[gateway.StatusChecker](g)
		if !ok {
			continue
		}
		report.Checked++
		st, err := checker.CheckStatus(ctx, tx.ExternalRef())
		if err != nil {
			s.logger.Warn("status check failed", "transaction_id", tx.ID, "gateway", tx.Gateway, "error", err)
			continue
		}
		if !st.State.Final() {
			continue
		}
		_, err = s.HandleCallback(ctx, gateway.Callback{
			Gateway:    tx.Gateway,
			ExternalID: tx.ExternalRef(),
			Status:     st.State,
			Reason:     st.Reason,
		})
		if err != nil {
			continue
		}
		report.Finalized++
	}

	stale, err := txs.ListPending(ctx, transaction.StatusReserved, now.Add(-s.cfg.ReservedStaleAfter), s.cfg.PollBatch)
	if err != nil {
		return report, err
	}
	for _, tx := range stale {
		s.logger.Error("reservation never reached a gateway", "transaction_id", tx.ID, "account_id", tx.AccountID,
			"total", tx.Total().StringFixed(2), "since", tx.UpdatedAt)
	}
	report.StaleReservations = len(stale)
	if report.Checked > 0 || report.StaleReservations > 0 {
		s.logger.Info("pending poll finished", "checked", report.Checked, "finalized", report.Finalized,
			"stale_reservations", report.StaleReservations)
	}
	return report, nil
}
