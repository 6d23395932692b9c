package alert

import (
	"time"

	"github.com/google/uuid"
)

// Flag labels raised by the transaction monitor.
const (
	FlagLargeTransaction = "Large transaction"
	FlagHighFrequency    = "High frequency of transactions"
	FlagHighRiskCountry  = "Transaction from high-risk country"
)

// Alert marks a transaction for manual review.
type Alert struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Flags         []string
	Reviewed      bool
	CreatedAt     time.Time
}

// New builds an unreviewed alert.
func New(transactionID uuid.UUID, flags []string) *Alert {
	return &Alert{
		ID:            uuid.New(),
		TransactionID: transactionID,
		Flags:         append([]string(nil), flags...),
		CreatedAt:     time.Now().UTC(),
	}
}
