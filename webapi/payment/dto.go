package payment

import "github.com/shopspring/decimal"

//revive:disable

// DepositRequest asks Method to collect Amount plus fee from the caller.
type DepositRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"required,min=2,max=32"`
	Country     string          `json:"country" validate:"required,iso3166_1_alpha2"`
	Source      string          `json:"source" validate:"max=128"`
	Description string          `json:"description" validate:"max=255"`
}

// WithdrawRequest pays Amount out to Destination through Method.
type WithdrawRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"required,min=2,max=32"`
	Country     string          `json:"country" validate:"required,iso3166_1_alpha2"`
	Destination string          `json:"destination" validate:"required,min=6,max=128"`
	Description string          `json:"description" validate:"max=255"`
}

// TopUpRequest buys Amount of airtime for Phone.
type TopUpRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"required,min=2,max=32"`
	Country     string          `json:"country" validate:"required,iso3166_1_alpha2"`
	Phone       string          `json:"phone" validate:"required,e164"`
	Description string          `json:"description" validate:"max=255"`
}
