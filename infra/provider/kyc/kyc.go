// Package kyc asks an external identity service whether a user is verified.
package kyc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/provider/identity"
	"github.com/google/uuid"
)

type verificationResponse struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
}

// Client implements identity.Verifier over HTTP.
type Client struct {
	http   *gateway.HTTPClient
	logger *slog.Logger
}

func New(cfg *config.KYC, logger *slog.Logger) *Client {
	return &Client{
		http:   gateway.NewHTTPClient("kyc", cfg.URL, gateway.HTTPOptions{Timeout: cfg.Timeout}, logger),
		logger: logger.With("component", "kyc"),
	}
}

// IsVerified treats an unknown user (404) as unverified.
func (c *Client) IsVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	var resp verificationResponse
	err := c.http.Do(ctx, http.MethodGet, "/users/"+userID.String()+"/verification", "", nil, &resp)
	if err != nil {
		if err.Status == http.StatusNotFound {
			return false, nil
		}
		c.logger.Error("kyc lookup failed", "user_id", userID, "error", err)
		return false, fmt.Errorf("kyc lookup: %w", err)
	}
	return resp.Verified || resp.Status == "verified", nil
}

var _ identity.Verifier = (*Client)(nil)
