package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type payoutRequest struct {
	txType      transaction.Type
	userID      uuid.UUID
	amount      decimal.Decimal
	gateway     string
	country     string
	destination string
	description string
	meta        Metadata
}

// Withdraw reserves amount plus fee on the user's account, then asks the
// gateway to pay the amount out. If the gateway fails the reservation is
// reversed and the failed transaction is returned together with the
// *gateway.Error.
func (s *Service) Withdraw(ctx context.Context, cmd WithdrawCommand) (*Result, error) {
	return s.payout(ctx, payoutRequest{
		txType:      transaction.TypeWithdrawal,
		userID:      cmd.UserID,
		amount:      cmd.Amount,
		gateway:     cmd.Gateway,
		country:     cmd.Country,
		destination: cmd.Destination,
		description: cmd.Description,
		meta:        cmd.Metadata,
	})
}

// TopUp follows the Withdraw protocol with the phone number as destination.
func (s *Service) TopUp(ctx context.Context, cmd TopUpCommand) (*Result, error) {
	if strings.TrimSpace(cmd.Phone) == "" {
		return nil, fmt.Errorf("%w: phone number is required", domain.ErrValidation)
	}
	return s.payout(ctx, payoutRequest{
		txType:      transaction.TypeTopUp,
		userID:      cmd.UserID,
		amount:      cmd.Amount,
		gateway:     cmd.Gateway,
		country:     cmd.Country,
		destination: cmd.Phone,
		description: cmd.Description,
		meta:        cmd.Metadata,
	})
}

func (s *Service) payout(ctx context.Context, req payoutRequest) (*Result, error) {
	req.country = strings.ToUpper(req.country)
	if err := validateMoneyRequest(req.userID, req.amount, req.gateway, req.country); err != nil {
		return nil, err
	}
	logger := s.logger.With("op", string(req.txType), "user_id", req.userID, "gateway", req.gateway)

	m := transaction.NewMachine()
	if err := m.To(transaction.StatusValidating); err != nil {
		return nil, err
	}
	if err := s.requireVerified(ctx, req.userID); err != nil {
		return nil, err
	}
	g, err := s.resolveGateway(req.gateway, req.country)
	if err != nil {
		return nil, err
	}
	acc, err := s.userAccount(ctx, req.userID)
	if err != nil {
		return nil, err
	}
	quote, err := s.fees.Compute(ctx, req.txType, req.amount)
	if err != nil {
		return nil, err
	}
	if err := m.To(transaction.StatusReserved); err != nil {
		return nil, err
	}

	id := transaction.NewID()
	userID := req.userID
	now := s.now()
	tx := &transaction.Transaction{
		ID:             id,
		AccountID:      acc.ID,
		UserID:         &userID,
		Type:           req.txType,
		Amount:         quote.Amount,
		Fee:            quote.Fee,
		Delta:          quote.Total.Neg(),
		Status:         m.Current(),
		Gateway:        g.Name(),
		IdempotencyKey: id.String(),
		Description:    req.description,
		Country:        req.country,
		IPAddress:      req.meta.IPAddress,
		Geolocation:    req.meta.Geolocation,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// reserve
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		accounts, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		txs, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		if _, err := accounts.AdjustBalance(ctx, acc.ID, tx.Delta); err != nil {
			return err
		}
		return txs.Create(ctx, tx)
	})
	if err != nil {
		logger.Info("reservation refused", "amount", quote.Amount, "fee", quote.Fee, "error", err)
		return nil, err
	}
	logger.Info("funds reserved", "transaction_id", id, "total", quote.Total)

	res := g.InitiateWithdrawal(ctx, gateway.WithdrawalRequest{
		TransactionID:  id,
		UserID:         req.userID,
		Amount:         quote.Amount,
		Country:        req.country,
		IdempotencyKey: id.String(),
		Description:    req.description,
		Destination:    req.destination,
	})

	// The gateway call has happened; the rest must not be abandoned with the request.
	ctx = context.WithoutCancel(ctx)

	if !res.OK() {
		cause := res.Cause()
		logger.Warn("gateway rejected payout, reversing reservation", "transaction_id", id, "error", cause)
		if err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			return s.settle(ctx, uow, tx, gateway.StateFailed, cause.Error())
		}); err != nil {
			logger.Error("reversal failed; reconciliation will flag the reservation",
				"transaction_id", id, "error", err)
			return nil, errors.Join(cause, err)
		}
		s.emit(ctx, tx)
		return &Result{Transaction: tx}, cause
	}

	externalID := res.ExternalID
	final := res.Kind == gateway.KindSuccess && gateway.SettlesOnSuccess(g)
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		txs, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		err = txs.Transition(ctx, tx.ID, tx.Status, transaction.StatusGatewayPending,
			transaction.Patch{ExternalID: &externalID})
		if err != nil {
			return err
		}
		tx.Status = transaction.StatusGatewayPending
		tx.ExternalID = &externalID
		if final {
			return s.settle(ctx, uow, tx, gateway.StateCompleted, "")
		}
		return nil
	})
	if err != nil {
		// Funds stay reserved; a callback for externalID cannot find the row,
		// so the stale-reservation report and reconciliation pick it up.
		logger.Error("record gateway acceptance failed", "transaction_id", id, "external_id", externalID, "error", err)
		return nil, err
	}
	if final {
		s.emit(ctx, tx)
	}
	logger.Info("payout accepted by gateway", "transaction_id", id, "external_id", externalID, "status", tx.Status)
	return &Result{Transaction: tx, Instructions: res.MoreInfo}, nil
}
