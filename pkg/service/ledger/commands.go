package ledger

import (
	"fmt"
	"strings"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Metadata is request context recorded on the transaction for the monitor.
type Metadata struct {
	IPAddress   string
	Geolocation string
}

type DepositCommand struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Gateway     string
	Country     string
	Source      string
	Description string
	Metadata
}

type WithdrawCommand struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Gateway     string
	Country     string
	Destination string
	Description string
	Metadata
}

// TopUpCommand buys airtime for Phone through an airtime gateway.
type TopUpCommand struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Gateway     string
	Country     string
	Phone       string
	Description string
	Metadata
}

// TransferCommand moves funds between two users' accounts.
type TransferCommand struct {
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Amount      decimal.Decimal
	Description string
	Metadata
}

// Result is the outcome of a gateway-backed operation. Instructions carry
// rail-specific follow-ups, such as an anchor's deposit URL and memo.
type Result struct {
	Transaction  *transaction.Transaction
	Instructions map[string]string
}

// TransferResult holds the rows a transfer wrote. Fee is nil when no fee applied.
type TransferResult struct {
	Ref    uuid.UUID
	Debit  *transaction.Transaction
	Credit *transaction.Transaction
	Fee    *transaction.Transaction
}

func validateMoneyRequest(userID uuid.UUID, amount decimal.Decimal, gatewayName, country string) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if err := money.ValidatePositive(amount); err != nil {
		return err
	}
	if strings.TrimSpace(gatewayName) == "" {
		return fmt.Errorf("%w: payment method is required", domain.ErrValidation)
	}
	if len(country) != 2 {
		return fmt.Errorf("%w: country must be an ISO 3166-1 alpha-2 code", domain.ErrValidation)
	}
	return nil
}
