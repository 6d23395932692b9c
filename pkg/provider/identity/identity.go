// Package identity is the KYC boundary: the ledger only asks whether a user
// has passed verification.
package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Verifier reports a user's KYC state.
type Verifier interface {
	IsVerified(ctx context.Context, userID uuid.UUID) (bool, error)
}

// AllowAll treats every user as verified. Development only.
type AllowAll struct{}

func (AllowAll) IsVerified(context.Context, uuid.UUID) (bool, error) { return true, nil }

// Static answers from an in-memory set.
type Static struct {
	mu       sync.RWMutex
	verified map[uuid.UUID]bool
}

func NewStatic(verified ...uuid.UUID) *Static {
	s := &Static{verified: make(map[uuid.UUID]bool, len(verified))}
	for _, id := range verified {
		s.verified[id] = true
	}
	return s
}

func (s *Static) Set(userID uuid.UUID, verified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[userID] = verified
}

func (s *Static) IsVerified(_ context.Context, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verified[userID], nil
}
