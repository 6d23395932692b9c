package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/amirasaad/usdledger/pkg/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of a generic webhook body.
const SignatureHeader = "X-Signature"

// State is the rail-side state of a request.
type State string

const (
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StatePending   State = "pending"
)

// Final reports whether the state ends the transaction.
func (s State) Final() bool {
	return s == StateCompleted || s == StateFailed
}

// Status is a StatusChecker answer.
type Status struct {
	State  State
	Reason string
}

// Callback is an authenticated final-status notification from a rail.
type Callback struct {
	Gateway    string `json:"-"`
	ExternalID string `json:"external_id"`
	Status     State  `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseSignedCallback verifies signature and decodes the generic callback
// body {"external_id", "status", "reason"}.
func ParseSignedCallback(gateway, secret string, payload []byte, signature string) (*Callback, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: callback secret not configured", domain.ErrUnauthorized)
	}
	want := Sign(secret, payload)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return nil, fmt.Errorf("%w: bad callback signature", domain.ErrUnauthorized)
	}
	var cb Callback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("%w: callback body: %v", domain.ErrValidation, err)
	}
	if cb.ExternalID == "" || !cb.Status.Final() {
		return nil, fmt.Errorf("%w: callback needs external_id and a final status", domain.ErrValidation)
	}
	cb.Gateway = gateway
	return &cb, nil
}
