package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type is the business kind of a transaction.
type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeTransfer   Type = "transfer"
	TypeTopUp      Type = "top-up"
	TypeFee        Type = "fee"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer, TypeTopUp, TypeFee:
		return true
	}
	return false
}

// IsOutflow reports whether t reserves funds before calling a gateway.
func (t Type) IsOutflow() bool {
	return t == TypeWithdrawal || t == TypeTopUp
}

// Transaction is one row of the append-only transaction log.
//
// Amount is the requested amount and Fee the fee quoted for it. Delta is the
// signed balance change this row applied to AccountID; the deltas of an
// account's rows add up to its balance.
type Transaction struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	UserID         *uuid.UUID
	Type           Type
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	Delta          decimal.Decimal
	Status         Status
	Gateway        string
	ExternalID     *string
	InternalRef    *uuid.UUID
	IdempotencyKey string
	Description    string
	Country        string
	IPAddress      string
	Geolocation    string
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewID returns a time-sortable transaction id.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// Net is the amount minus the fee.
func (t *Transaction) Net() decimal.Decimal { return t.Amount.Sub(t.Fee) }

// Total is the amount plus the fee.
func (t *Transaction) Total() decimal.Decimal { return t.Amount.Add(t.Fee) }

// ExternalRef returns the gateway reference or "".
func (t *Transaction) ExternalRef() string {
	if t.ExternalID == nil {
		return ""
	}
	return *t.ExternalID
}

// Patch carries the fields a status transition may update alongside the status.
type Patch struct {
	ExternalID    *string
	Delta         *decimal.Decimal
	FailureReason *string
}
