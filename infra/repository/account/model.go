package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the accounts row. UserID is set for user accounts and Name for
// platform accounts; both are unique.
type Account struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Kind      string          `gorm:"type:varchar(16);not null;default:'user'"`
	UserID    *uuid.UUID      `gorm:"type:uuid;uniqueIndex"`
	Name      *string         `gorm:"type:varchar(64);uniqueIndex"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0;check:chk_accounts_balance_non_negative,balance >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for the Account model.
func (Account) TableName() string {
	return "accounts"
}
