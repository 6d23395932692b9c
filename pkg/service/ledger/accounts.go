package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/account"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// OpenAccount returns the user's account, creating it on first call.
func (s *Service) OpenAccount(ctx context.Context, userID uuid.UUID) (*account.Account, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	existing, err := s.userAccount(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	acc, err := account.New().WithUserID(userID).Build()
	if err != nil {
		return nil, err
	}
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		accounts, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		return accounts.Create(ctx, acc)
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// lost the race against a concurrent open
		return s.userAccount(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("account opened", "user_id", userID, "account_id", acc.ID)
	return acc, nil
}

// Account returns the user's account.
func (s *Service) Account(ctx context.Context, userID uuid.UUID) (*account.Account, error) {
	return s.userAccount(ctx, userID)
}

// Balance returns the user's current balance.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	acc, err := s.userAccount(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

// History lists the user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)
	offset = max(offset, 0)

	acc, err := s.userAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	return txs.ListByAccount(ctx, acc.ID, limit, offset)
}
