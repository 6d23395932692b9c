package domain

import "errors"

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized is returned when a user is not authorized to perform an action
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotVerified is returned when the identity provider has not verified the user
	ErrNotVerified = errors.New("user is not verified")
	// ErrConflict is returned when a row changed underneath a compare-and-set update
	ErrConflict = errors.New("conflicting update")
)

// Ledger errors
var (
	// ErrInvalidAmount is returned for zero balance adjustments and malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds is returned when a debit would take a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSameAccount is returned when a transfer names the sender as recipient.
	ErrSameAccount = errors.New("cannot transfer to same account")
	// ErrNoActiveFeeConfig is returned when no active fee row exists for a transaction type.
	ErrNoActiveFeeConfig = errors.New("no active fee configuration")
	// ErrUnsupportedCountry is returned when the selected gateway does not serve a country.
	ErrUnsupportedCountry = errors.New("country not supported by gateway")
	// ErrUnknownGateway is returned when a payment method has no registered gateway.
	ErrUnknownGateway = errors.New("unknown gateway")
	// ErrInvalidTransition is returned for status changes the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)
