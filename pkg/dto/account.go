// Package dto holds the read models returned by the API.
package dto

import (
	"time"

	"github.com/google/uuid"
)

// AccountRead is the API view of a user account.
type AccountRead struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// BalanceRead is the response of the balance route.
type BalanceRead struct {
	AccountID uuid.UUID `json:"account_id"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
}
