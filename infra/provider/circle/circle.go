// Package circle is the bank wire rail. It speaks a Circle-style JSON API:
// deposits, payouts and the pooled USD balance.
package circle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/money"
	"github.com/shopspring/decimal"
)

const Name = "circle"

type amount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type depositRequest struct {
	IdempotencyKey string            `json:"idempotencyKey"`
	Amount         amount            `json:"amount"`
	Source         string            `json:"source,omitempty"`
	Description    string            `json:"description,omitempty"`
	Metadata       map[string]string `json:"metadata"`
}

type payoutRequest struct {
	IdempotencyKey string            `json:"idempotencyKey"`
	Amount         amount            `json:"amount"`
	Destination    string            `json:"destination"`
	Metadata       map[string]string `json:"metadata"`
}

type transferResponse struct {
	Data struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		ErrorCode    string `json:"errorCode"`
		TrackingRef  string `json:"trackingRef"`
		Instructions string `json:"instructions"`
	} `json:"data"`
}

type balancesResponse struct {
	Data struct {
		Available []amount `json:"available"`
	} `json:"data"`
}

// Gateway is the Circle rail.
type Gateway struct {
	http      *gateway.HTTPClient
	countries []string
	logger    *slog.Logger
}

func New(cfg *config.Circle, opts gateway.HTTPOptions, logger *slog.Logger) *Gateway {
	if opts.Headers == nil {
		opts.Headers = map[string]string{}
	}
	opts.Headers["Authorization"] = "Bearer " + cfg.ApiKey
	return &Gateway{
		http:      gateway.NewHTTPClient(Name, cfg.BaseURL, opts, logger),
		countries: cfg.Countries,
		logger:    logger.With("gateway", Name),
	}
}

func (g *Gateway) Name() string { return Name }

func (g *Gateway) SupportsCountry(country string) bool {
	return gateway.SupportsCountry(g.countries, country)
}

func (g *Gateway) InitiateDeposit(ctx context.Context, req gateway.DepositRequest) gateway.Result {
	body := depositRequest{
		IdempotencyKey: req.IdempotencyKey,
		Amount:         amount{Amount: money.Format(req.Amount), Currency: money.Currency},
		Source:         req.Source,
		Description:    req.Description,
		Metadata:       metadata(req.TransactionID.String(), req.UserID.String(), req.Country),
	}
	var resp transferResponse
	if err := g.http.Do(ctx, http.MethodPost, "/v1/deposits", req.IdempotencyKey, body, &resp); err != nil {
		return gateway.Failure(err)
	}
	info := map[string]string{}
	if resp.Data.TrackingRef != "" {
		info["tracking_ref"] = resp.Data.TrackingRef
	}
	if resp.Data.Instructions != "" {
		info["instructions"] = resp.Data.Instructions
	}
	return g.result(resp, info)
}

func (g *Gateway) InitiateWithdrawal(ctx context.Context, req gateway.WithdrawalRequest) gateway.Result {
	if req.Destination == "" {
		return gateway.Failure(gateway.NewError(Name, gateway.ErrValidation, "payout destination is required"))
	}
	body := payoutRequest{
		IdempotencyKey: req.IdempotencyKey,
		Amount:         amount{Amount: money.Format(req.Amount), Currency: money.Currency},
		Destination:    req.Destination,
		Metadata:       metadata(req.TransactionID.String(), req.UserID.String(), req.Country),
	}
	var resp transferResponse
	if err := g.http.Do(ctx, http.MethodPost, "/v1/payouts", req.IdempotencyKey, body, &resp); err != nil {
		return gateway.Failure(err)
	}
	return g.result(resp, nil)
}

func (g *Gateway) result(resp transferResponse, info map[string]string) gateway.Result {
	if resp.Data.ID == "" {
		return gateway.Failure(gateway.NewError(Name, gateway.ErrHTTP, "response without id"))
	}
	switch resp.Data.Status {
	case "failed":
		return gateway.Failure(gateway.NewError(Name, gateway.ErrValidation, "rejected: "+resp.Data.ErrorCode))
	case "complete":
		return gateway.Success(resp.Data.ID, info)
	default:
		return gateway.Pending(resp.Data.ID, info)
	}
}

// CheckStatus looks the id up as a payout first, then as a deposit.
func (g *Gateway) CheckStatus(ctx context.Context, externalID string) (gateway.Status, error) {
	id := url.PathEscape(externalID)
	var resp transferResponse
	err := g.http.Do(ctx, http.MethodGet, "/v1/payouts/"+id, "", nil, &resp)
	if err != nil && err.Status == http.StatusNotFound {
		resp = transferResponse{}
		err = g.http.Do(ctx, http.MethodGet, "/v1/deposits/"+id, "", nil, &resp)
	}
	if err != nil {
		return gateway.Status{}, err
	}
	switch resp.Data.Status {
	case "complete":
		return gateway.Status{State: gateway.StateCompleted}, nil
	case "failed":
		return gateway.Status{State: gateway.StateFailed, Reason: resp.Data.ErrorCode}, nil
	default:
		return gateway.Status{State: gateway.StatePending}, nil
	}
}

// PooledBalance is the available USD balance of the platform wallet.
func (g *Gateway) PooledBalance(ctx context.Context) (decimal.Decimal, error) {
	var resp balancesResponse
	if err := g.http.Do(ctx, http.MethodGet, "/v1/balances", "", nil, &resp); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range resp.Data.Available {
		if a.Currency != money.Currency {
			continue
		}
		d, err := decimal.NewFromString(a.Amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("circle balance %q: %w", a.Amount, err)
		}
		total = total.Add(d)
	}
	return total, nil
}

func metadata(txID, userID, country string) map[string]string {
	return map[string]string{"transactionId": txID, "userId": userID, "country": country}
}

var (
	_ gateway.Gateway       = (*Gateway)(nil)
	_ gateway.StatusChecker = (*Gateway)(nil)
	_ gateway.BalanceSource = (*Gateway)(nil)
)
