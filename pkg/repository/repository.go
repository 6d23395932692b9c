package repository

import (
	"context"
	"time"

	"github.com/amirasaad/usdledger/pkg/domain/account"
	"github.com/amirasaad/usdledger/pkg/domain/alert"
	"github.com/amirasaad/usdledger/pkg/domain/fee"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository is the balance half of the ledger store.
//
// LockForUpdate and AdjustBalance take row locks; they must run inside
// UnitOfWork.Do so the locks are held until the unit commits or rolls back.
type AccountRepository interface {
	Create(ctx context.Context, a *account.Account) error
	Get(ctx context.Context, id uuid.UUID) (*account.Account, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*account.Account, error)
	GetPlatform(ctx context.Context, name string) (*account.Account, error)
	// EnsurePlatform returns the named platform account, creating it when missing.
	EnsurePlatform(ctx context.Context, name string) (*account.Account, error)
	// LockForUpdate locks the given rows one at a time in ascending id order
	// and returns them in that order.
	LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]*account.Account, error)
	// AdjustBalance applies delta under a row lock and returns the new balance.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	// SumBalances adds up the balances of user accounts and of the named platform accounts.
	SumBalances(ctx context.Context, filter BalanceFilter) (decimal.Decimal, error)
}

// BalanceFilter selects the accounts SumBalances includes.
type BalanceFilter struct {
	Users     bool
	Platforms []string
}

// TransactionRepository is the append-only half of the ledger store.
type TransactionRepository interface {
	Create(ctx context.Context, tx *transaction.Transaction) error
	Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	// GetByExternalID locks and returns the row the gateway knows as externalID.
	GetByExternalID(ctx context.Context, gateway, externalID string) (*transaction.Transaction, error)
	// Transition moves a row from one status to another. It returns
	// domain.ErrConflict when the row is no longer in from.
	Transition(ctx context.Context, id uuid.UUID, from, to transaction.Status, patch transaction.Patch) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error)
	ListByInternalRef(ctx context.Context, ref uuid.UUID) ([]*transaction.Transaction, error)
	CountSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error)
	// SumPendingTotals adds Amount+Fee over pending rows of the given types.
	SumPendingTotals(ctx context.Context, types ...transaction.Type) (decimal.Decimal, error)
	// SumWithheldOnCredits adds Amount-Delta over completed transfer credit
	// legs: the fee kept back from recipients.
	SumWithheldOnCredits(ctx context.Context) (decimal.Decimal, error)
	ListPending(ctx context.Context, status transaction.Status, olderThan time.Time, limit int) ([]*transaction.Transaction, error)
}

// FeeRepository stores fee schedules.
type FeeRepository interface {
	GetActive(ctx context.Context, t transaction.Type) (*fee.Fee, error)
	// Upsert makes f the only active schedule for its type.
	Upsert(ctx context.Context, f *fee.Fee) error
	List(ctx context.Context) ([]*fee.Fee, error)
}

// AlertRepository stores monitor alerts.
type AlertRepository interface {
	Create(ctx context.Context, a *alert.Alert) error
	List(ctx context.Context, onlyUnreviewed bool, limit int) ([]*alert.Alert, error)
	MarkReviewed(ctx context.Context, id uuid.UUID) error
	ExistsForTransaction(ctx context.Context, transactionID uuid.UUID) (bool, error)
}
