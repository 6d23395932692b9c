package fee

import (
	"time"

	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/shopspring/decimal"
)

// Fee is the fee schedule of one transaction type: a flat component plus a
// percentage of the amount. Only active rows are used.
type Fee struct {
	ID         uint
	Type       transaction.Type
	Flat       decimal.Decimal
	Percentage decimal.Decimal
	Active     bool
	UpdatedAt  time.Time
}

// Quote is the fee breakdown of one amount.
type Quote struct {
	Amount decimal.Decimal
	Fee    decimal.Decimal
	Net    decimal.Decimal
	Total  decimal.Decimal
}
