package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction represents a persisted ledger transaction. Rows are never
// deleted; only Status, ExternalID, Delta and FailureReason change, and only
// while the row is pending.
type Transaction struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AccountID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_transactions_account_created,priority:1"`
	UserID         *uuid.UUID      `gorm:"type:uuid;index"`
	Type           string          `gorm:"type:varchar(16);not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Fee            decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	Delta          decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	Status         string          `gorm:"type:varchar(32);not null;index"`
	Gateway        string          `gorm:"type:varchar(32);not null;default:'';uniqueIndex:idx_transactions_gateway_external"`
	ExternalID     *string         `gorm:"type:varchar(128);uniqueIndex:idx_transactions_gateway_external"`
	InternalRef    *uuid.UUID      `gorm:"type:uuid;index"`
	IdempotencyKey string          `gorm:"type:varchar(64)"`
	Description    string          `gorm:"type:text"`
	Country        string          `gorm:"type:varchar(2)"`
	IPAddress      string          `gorm:"type:varchar(64)"`
	Geolocation    string          `gorm:"type:varchar(64)"`
	FailureReason  string          `gorm:"type:text"`
	CreatedAt      time.Time       `gorm:"index:idx_transactions_account_created,priority:2"`
	UpdatedAt      time.Time
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}
