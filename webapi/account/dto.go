package account

import "github.com/shopspring/decimal"

//revive:disable

// TransferRequest moves Amount from the caller to RecipientID's account.
type TransferRequest struct {
	RecipientID string          `json:"recipient_id" validate:"required,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=255"`
}

// HistoryQuery pages the transaction history, newest first.
type HistoryQuery struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}
