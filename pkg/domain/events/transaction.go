package events

import (
	"time"

	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionFinalized carries the terminal state of one transaction row.
// A transfer emits it for the debit leg only.
type TransactionFinalized struct {
	EventID       uuid.UUID          `json:"event_id"`
	TransactionID uuid.UUID          `json:"transaction_id"`
	AccountID     uuid.UUID          `json:"account_id"`
	UserID        *uuid.UUID         `json:"user_id,omitempty"`
	TxType        transaction.Type   `json:"type"`
	Status        transaction.Status `json:"status"`
	Amount        decimal.Decimal    `json:"amount"`
	Fee           decimal.Decimal    `json:"fee"`
	Gateway       string             `json:"gateway,omitempty"`
	Country       string             `json:"country,omitempty"`
	IPAddress     string             `json:"ip_address,omitempty"`
	Geolocation   string             `json:"geolocation,omitempty"`
	FailureReason string             `json:"failure_reason,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

func (e *TransactionFinalized) Type() string {
	return EventTypeTransactionFinalized.String()
}

// NewTransactionFinalized builds the event from a finalized row.
func NewTransactionFinalized(tx *transaction.Transaction) *TransactionFinalized {
	return &TransactionFinalized{
		EventID:       uuid.New(),
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		UserID:        tx.UserID,
		TxType:        tx.Type,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Fee:           tx.Fee,
		Gateway:       tx.Gateway,
		Country:       tx.Country,
		IPAddress:     tx.IPAddress,
		Geolocation:   tx.Geolocation,
		FailureReason: tx.FailureReason,
		OccurredAt:    time.Now().UTC(),
	}
}

// Transaction rebuilds the fields of the row the monitor needs.
func (e *TransactionFinalized) Transaction() *transaction.Transaction {
	return &transaction.Transaction{
		ID:            e.TransactionID,
		AccountID:     e.AccountID,
		UserID:        e.UserID,
		Type:          e.TxType,
		Status:        e.Status,
		Amount:        e.Amount,
		Fee:           e.Fee,
		Gateway:       e.Gateway,
		Country:       e.Country,
		IPAddress:     e.IPAddress,
		Geolocation:   e.Geolocation,
		FailureReason: e.FailureReason,
	}
}
