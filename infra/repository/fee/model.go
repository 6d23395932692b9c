package fee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fee is one fee schedule row. Superseded schedules stay in the table with
// Active=false.
type Fee struct {
	ID         uint            `gorm:"primaryKey"`
	Type       string          `gorm:"type:varchar(16);not null;index"`
	Flat       decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	Percentage decimal.Decimal `gorm:"type:numeric(7,4);not null;default:0"`
	Active     bool            `gorm:"not null;default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName specifies the table name for the Fee model.
func (Fee) TableName() string {
	return "fees"
}
