// Package reloadly is the airtime top-up rail. Top-ups are synchronous: a
// successful response means the airtime was delivered.
package reloadly

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/gateway"
)

const Name = "reloadly"

type phone struct {
	CountryCode string `json:"countryCode"`
	Number      string `json:"number"`
}

type topUpRequest struct {
	Amount           json.Number `json:"amount"`
	UseLocalAmount   bool        `json:"useLocalAmount"`
	CustomIdentifier string      `json:"customIdentifier"`
	RecipientPhone   phone       `json:"recipientPhone"`
}

type topUpResponse struct {
	TransactionID    int64  `json:"transactionId"`
	Status           string `json:"status"`
	CustomIdentifier string `json:"customIdentifier"`
	ErrorMessage     string `json:"message"`
}

// Gateway is the Reloadly rail.
type Gateway struct {
	http      *gateway.HTTPClient
	countries []string
}

func New(cfg *config.Reloadly, opts gateway.HTTPOptions, logger *slog.Logger) *Gateway {
	opts.Headers = map[string]string{
		"Authorization": "Bearer " + cfg.Token,
		"Accept":        "application/com.reloadly.topups-v1+json",
	}
	return &Gateway{
		http:      gateway.NewHTTPClient(Name, cfg.BaseURL, opts, logger),
		countries: cfg.Countries,
	}
}

func (g *Gateway) Name() string { return Name }

func (g *Gateway) SupportsCountry(country string) bool {
	return gateway.SupportsCountry(g.countries, country)
}

func (g *Gateway) SettlesOnSuccess() bool { return true }

func (g *Gateway) InitiateDeposit(context.Context, gateway.DepositRequest) gateway.Result {
	return gateway.Failure(gateway.NewError(Name, gateway.ErrUnsupported, "airtime rail does not take deposits"))
}

// InitiateWithdrawal sends airtime to the phone number in Destination. The
// idempotency key travels as customIdentifier, which the rail deduplicates.
func (g *Gateway) InitiateWithdrawal(ctx context.Context, req gateway.WithdrawalRequest) gateway.Result {
	number := strings.TrimSpace(req.Destination)
	if number == "" {
		return gateway.Failure(gateway.NewError(Name, gateway.ErrValidation, "recipient phone is required"))
	}
	body := topUpRequest{
		Amount:           json.Number(req.Amount.StringFixed(2)),
		CustomIdentifier: req.IdempotencyKey,
		RecipientPhone:   phone{CountryCode: strings.ToUpper(req.Country), Number: number},
	}
	var resp topUpResponse
	if err := g.http.Do(ctx, http.MethodPost, "/topups", req.IdempotencyKey, body, &resp); err != nil {
		return gateway.Failure(err)
	}
	id := strconv.FormatInt(resp.TransactionID, 10)
	switch resp.Status {
	case "SUCCESSFUL":
		return gateway.Success(id, nil)
	case "FAILED", "REFUNDED":
		return gateway.Failure(gateway.NewError(Name, gateway.ErrValidation, "top-up failed: "+resp.ErrorMessage))
	default:
		return gateway.Pending(id, nil)
	}
}

func (g *Gateway) CheckStatus(ctx context.Context, externalID string) (gateway.Status, error) {
	if _, err := strconv.ParseInt(externalID, 10, 64); err != nil {
		return gateway.Status{}, fmt.Errorf("reloadly transaction id %q: %w", externalID, err)
	}
	var resp topUpResponse
	if err := g.http.Do(ctx, http.MethodGet, "/topups/"+externalID+"/status", "", nil, &resp); err != nil {
		return gateway.Status{}, err
	}
	switch resp.Status {
	case "SUCCESSFUL":
		return gateway.Status{State: gateway.StateCompleted}, nil
	case "FAILED", "REFUNDED":
		return gateway.Status{State: gateway.StateFailed, Reason: resp.ErrorMessage}, nil
	default:
		return gateway.Status{State: gateway.StatePending}, nil
	}
}

var (
	_ gateway.Gateway       = (*Gateway)(nil)
	_ gateway.StatusChecker = (*Gateway)(nil)
	_ gateway.SyncSettler   = (*Gateway)(nil)
)
