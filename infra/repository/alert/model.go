package alert

import (
	"time"

	"github.com/google/uuid"
)

// Alert is a monitor alert row; Flags is stored as a JSON array.
type Alert struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index"`
	Flags         []string  `gorm:"serializer:json;type:jsonb;not null"`
	Reviewed      bool      `gorm:"not null;default:false;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName specifies the table name for the Alert model.
func (Alert) TableName() string {
	return "alerts"
}
