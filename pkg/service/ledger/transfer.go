package ledger

import (
	"context"
	"fmt"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/money"
	"github.com/amirasaad/usdledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer moves funds between two users in one unit of work. The sender is
// debited Amount+Fee and the commission account credited Fee; the recipient
// receives Amount-Fee, or Amount in sender_only fee mode. The legs and the
// fee row share one InternalRef and are completed at once.
func (s *Service) Transfer(ctx context.Context, cmd TransferCommand) (*TransferResult, error) {
	if cmd.SenderID == uuid.Nil || cmd.RecipientID == uuid.Nil {
		return nil, fmt.Errorf("%w: sender and recipient are required", domain.ErrValidation)
	}
	if err := money.ValidatePositive(cmd.Amount); err != nil {
		return nil, err
	}
	if cmd.SenderID == cmd.RecipientID {
		return nil, domain.ErrSameAccount
	}
	logger := s.logger.With("op", "transfer", "sender_id", cmd.SenderID, "recipient_id", cmd.RecipientID)

	if err := s.requireVerified(ctx, cmd.SenderID); err != nil {
		return nil, err
	}
	sender, err := s.userAccount(ctx, cmd.SenderID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.userAccount(ctx, cmd.RecipientID)
	if err != nil {
		return nil, err
	}
	quote, err := s.fees.Compute(ctx, transaction.TypeTransfer, cmd.Amount)
	if err != nil {
		return nil, err
	}
	credit := quote.Net
	if s.cfg.TransferFeeMode == FeeModeSenderOnly {
		credit = quote.Amount
	}
	if !credit.IsPositive() {
		return nil, fmt.Errorf("%w: amount %s does not cover the fee %s",
			domain.ErrValidation, money.Format(quote.Amount), money.Format(quote.Fee))
	}

	ref := uuid.New()
	now := s.now()
	row := func(accountID uuid.UUID, userID *uuid.UUID, t transaction.Type, amount, fee, delta decimal.Decimal) *transaction.Transaction {
		return &transaction.Transaction{
			ID:          transaction.NewID(),
			AccountID:   accountID,
			UserID:      userID,
			Type:        t,
			Amount:      amount,
			Fee:         fee,
			Delta:       delta,
			Status:      transaction.StatusCompleted,
			InternalRef: &ref,
			Description: cmd.Description,
			IPAddress:   cmd.IPAddress,
			Geolocation: cmd.Geolocation,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	senderID, recipientID := cmd.SenderID, cmd.RecipientID
	result := &TransferResult{
		Ref:    ref,
		Debit:  row(sender.ID, &senderID, transaction.TypeTransfer, quote.Amount, quote.Fee, quote.Total.Neg()),
		Credit: row(recipient.ID, &recipientID, transaction.TypeTransfer, quote.Amount, quote.Fee, credit),
	}
	result.Debit.IdempotencyKey = result.Debit.ID.String()
	result.Credit.IdempotencyKey = result.Debit.ID.String()

	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		accounts, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		txs, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		commission, err := accounts.EnsurePlatform(ctx, s.cfg.CommissionAccount)
		if err != nil {
			return err
		}
		locked, err := accounts.LockForUpdate(ctx, sender.ID, recipient.ID, commission.ID)
		if err != nil {
			return err
		}
		for _, a := range locked {
			if a.ID == sender.ID && !a.CanDebit(quote.Total) {
				return fmt.Errorf("%w: balance %s, needs %s",
					domain.ErrInsufficientFunds, money.Format(a.Balance), money.Format(quote.Total))
			}
		}
		if _, err := accounts.AdjustBalance(ctx, sender.ID, result.Debit.Delta); err != nil {
			return err
		}
		if _, err := accounts.AdjustBalance(ctx, recipient.ID, result.Credit.Delta); err != nil {
			return err
		}
		rows := []*transaction.Transaction{result.Debit, result.Credit}
		if quote.Fee.IsPositive() {
			if _, err := accounts.AdjustBalance(ctx, commission.ID, quote.Fee); err != nil {
				return err
			}
			result.Fee = row(commission.ID, nil, transaction.TypeFee, quote.Fee, decimal.Zero, quote.Fee)
			rows = append(rows, result.Fee)
		}
		for _, r := range rows {
			if err := txs.Create(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Info("transfer refused", "amount", quote.Amount, "error", err)
		return nil, err
	}
	logger.Info("transfer completed", "ref", ref, "amount", quote.Amount, "fee", quote.Fee, "credited", credit)
	// The monitor looks at the initiating leg only.
	s.emit(ctx, result.Debit)
	return result, nil
}
