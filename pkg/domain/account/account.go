package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind separates customer accounts from the platform's own accounts.
type Kind string

const (
	KindUser     Kind = "user"
	KindPlatform Kind = "platform"
)

// Well-known platform account names.
const (
	CommissionAccount = "commission"
	CustodyAccount    = "custody"
)

var (
	// ErrMissingOwner is returned when a user account is built without a user id.
	ErrMissingOwner = errors.New("user account requires a user id")
	// ErrMissingName is returned when a platform account is built without a name.
	ErrMissingName = errors.New("platform account requires a name")
	// ErrNegativeBalance is returned when hydrating an account with a balance below zero.
	ErrNegativeBalance = errors.New("balance cannot be negative")
)

// Account holds one USD balance. User accounts belong to exactly one user;
// platform accounts (fee collection, pooled custody) are identified by name.
//
// Invariants:
//   - Balance is never negative.
//   - Balance only changes through Apply, which rejects zero deltas.
type Account struct {
	ID        uuid.UUID
	Kind      Kind
	UserID    *uuid.UUID
	Name      string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPlatform reports whether the account is a platform account.
func (a *Account) IsPlatform() bool {
	return a.Kind == KindPlatform
}

// CanDebit reports whether the balance covers amount.
func (a *Account) CanDebit(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// Apply adds delta to the balance and returns the new balance.
func (a *Account) Apply(delta decimal.Decimal) (decimal.Decimal, error) {
	if delta.IsZero() {
		return a.Balance, domain.ErrInvalidAmount
	}
	next := a.Balance.Add(delta)
	if next.IsNegative() {
		return a.Balance, fmt.Errorf(
			"%w: balance %s, delta %s", domain.ErrInsufficientFunds, a.Balance.StringFixed(2), delta.StringFixed(2))
	}
	a.Balance = next
	a.UpdatedAt = time.Now().UTC()
	return next, nil
}

// Builder provides a fluent API for constructing Account instances.
type Builder struct {
	id        uuid.UUID
	kind      Kind
	userID    uuid.UUID
	name      string
	balance   decimal.Decimal
	createdAt time.Time
	updatedAt time.Time
}

// New creates a Builder for a user account with a fresh id and zero balance.
func New() *Builder {
	now := time.Now().UTC()
	return &Builder{
		id:        uuid.New(),
		kind:      KindUser,
		balance:   decimal.Zero,
		createdAt: now,
		updatedAt: now,
	}
}

// NewPlatform creates a Builder for a named platform account.
func NewPlatform(name string) *Builder {
	b := New()
	b.kind = KindPlatform
	b.name = name
	return b
}

func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

// WithUserID sets the owner. Mandatory for user accounts.
func (b *Builder) WithUserID(userID uuid.UUID) *Builder {
	b.userID = userID
	return b
}

// WithBalance sets the balance. Only used when hydrating from storage or in tests.
func (b *Builder) WithBalance(balance decimal.Decimal) *Builder {
	b.balance = balance
	return b
}

func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.createdAt = t
	return b
}

func (b *Builder) WithUpdatedAt(t time.Time) *Builder {
	b.updatedAt = t
	return b
}

// Build validates the invariants and returns the Account.
func (b *Builder) Build() (*Account, error) {
	if b.balance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	a := &Account{
		ID:        b.id,
		Kind:      b.kind,
		Balance:   b.balance,
		CreatedAt: b.createdAt,
		UpdatedAt: b.updatedAt,
	}
	switch b.kind {
	case KindPlatform:
		if b.name == "" {
			return nil, ErrMissingName
		}
		a.Name = b.name
	default:
		if b.userID == uuid.Nil {
			return nil, ErrMissingOwner
		}
		uid := b.userID
		a.UserID = &uid
	}
	return a, nil
}
