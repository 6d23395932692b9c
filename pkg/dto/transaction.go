package dto

import (
	"time"

	"github.com/google/uuid"
)

// TransactionRead is the API view of one ledger row. Amounts are decimal
// strings with two places.
type TransactionRead struct {
	ID            uuid.UUID  `json:"id"`
	AccountID     uuid.UUID  `json:"account_id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Amount        string     `json:"amount"`
	Fee           string     `json:"fee"`
	Delta         string     `json:"delta"`
	Gateway       string     `json:"gateway,omitempty"`
	ExternalID    string     `json:"external_id,omitempty"`
	InternalRef   *uuid.UUID `json:"internal_ref,omitempty"`
	Description   string     `json:"description,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PaymentRead is the response of a gateway-backed write.
type PaymentRead struct {
	Transaction  TransactionRead   `json:"transaction"`
	Instructions map[string]string `json:"instructions,omitempty"`
}

// TransferRead lists the rows a transfer wrote.
type TransferRead struct {
	Ref    uuid.UUID        `json:"ref"`
	Debit  TransactionRead  `json:"debit"`
	Credit TransactionRead  `json:"credit"`
	Fee    *TransactionRead `json:"fee,omitempty"`
}
