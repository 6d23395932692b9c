// Package stellar is the stablecoin rail: a SEP-24 style anchor for
// interactive deposits and withdrawals, and Horizon for the custody
// account balance.
package stellar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/money"
	"github.com/shopspring/decimal"
)

const Name = "stellar"

// memoLen is the longest text memo a Stellar transaction carries.
const memoLen = 28

type interactiveRequest struct {
	AssetCode string `json:"asset_code"`
	Account   string `json:"account"`
	Amount    string `json:"amount"`
	Memo      string `json:"memo,omitempty"`
	MemoType  string `json:"memo_type,omitempty"`
	Dest      string `json:"dest,omitempty"`
}

type interactiveResponse struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	ID   string `json:"id"`
}

type transactionResponse struct {
	Transaction struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"transaction"`
}

type horizonAccount struct {
	Balances []struct {
		Balance   string `json:"balance"`
		AssetCode string `json:"asset_code"`
		AssetType string `json:"asset_type"`
	} `json:"balances"`
}

// Gateway is the Stellar anchor rail.
type Gateway struct {
	anchor    *gateway.HTTPClient
	horizon   *gateway.HTTPClient
	account   string
	assetCode string
	countries []string
}

func New(cfg *config.Stellar, opts gateway.HTTPOptions, logger *slog.Logger) *Gateway {
	anchorOpts := opts
	anchorOpts.Headers = map[string]string{"Authorization": "Bearer " + cfg.AuthToken}
	return &Gateway{
		anchor:    gateway.NewHTTPClient(Name, cfg.AnchorURL, anchorOpts, logger),
		horizon:   gateway.NewHTTPClient(Name, cfg.HorizonURL, opts, logger),
		account:   cfg.Account,
		assetCode: cfg.AssetCode,
		countries: cfg.Countries,
	}
}

func (g *Gateway) Name() string { return Name }

func (g *Gateway) SupportsCountry(country string) bool {
	return gateway.SupportsCountry(g.countries, country)
}

// Memo derives the text memo the user attaches to an on-chain deposit.
func Memo(key string) string {
	m := strings.ReplaceAll(key, "-", "")
	if len(m) > memoLen {
		m = m[:memoLen]
	}
	return m
}

func (g *Gateway) InitiateDeposit(ctx context.Context, req gateway.DepositRequest) gateway.Result {
	memo := Memo(req.IdempotencyKey)
	body := interactiveRequest{
		AssetCode: g.assetCode,
		Account:   g.account,
		Amount:    money.Format(req.Amount),
		Memo:      memo,
		MemoType:  "text",
	}
	var resp interactiveResponse
	if err := g.anchor.Do(ctx, http.MethodPost, "/transactions/deposit/interactive", req.IdempotencyKey, body, &resp); err != nil {
		return gateway.Failure(err)
	}
	if resp.ID == "" {
		return gateway.Failure(gateway.NewError(Name, gateway.ErrHTTP, "anchor response without id"))
	}
	return gateway.Pending(resp.ID, map[string]string{"url": resp.URL, "memo": memo, "account": g.account})
}

func (g *Gateway) InitiateWithdrawal(ctx context.Context, req gateway.WithdrawalRequest) gateway.Result {
	body := interactiveRequest{
		AssetCode: g.assetCode,
		Account:   g.account,
		Amount:    money.Format(req.Amount),
		Dest:      req.Destination,
	}
	var resp interactiveResponse
	if err := g.anchor.Do(ctx, http.MethodPost, "/transactions/withdraw/interactive", req.IdempotencyKey, body, &resp); err != nil {
		return gateway.Failure(err)
	}
	if resp.ID == "" {
		return gateway.Failure(gateway.NewError(Name, gateway.ErrHTTP, "anchor response without id"))
	}
	return gateway.Pending(resp.ID, map[string]string{"url": resp.URL})
}

// CheckStatus maps SEP-24 statuses: completed is final, error, expired and
// refunded are failures, everything else is still in flight.
func (g *Gateway) CheckStatus(ctx context.Context, externalID string) (gateway.Status, error) {
	var resp transactionResponse
	path := "/transaction?id=" + url.QueryEscape(externalID)
	if err := g.anchor.Do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return gateway.Status{}, err
	}
	switch resp.Transaction.Status {
	case "completed":
		return gateway.Status{State: gateway.StateCompleted}, nil
	case "error", "expired", "refunded", "no_market", "too_small", "too_large":
		reason := resp.Transaction.Message
		if reason == "" {
			reason = resp.Transaction.Status
		}
		return gateway.Status{State: gateway.StateFailed, Reason: reason}, nil
	default:
		return gateway.Status{State: gateway.StatePending}, nil
	}
}

// PooledBalance is the custody account's balance of the configured asset.
func (g *Gateway) PooledBalance(ctx context.Context) (decimal.Decimal, error) {
	var acct horizonAccount
	if err := g.horizon.Do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(g.account), "", nil, &acct); err != nil {
		return decimal.Zero, err
	}
	for _, b := range acct.Balances {
		if b.AssetCode != g.assetCode {
			continue
		}
		d, err := decimal.NewFromString(b.Balance)
		if err != nil {
			return decimal.Zero, fmt.Errorf("horizon balance %q: %w", b.Balance, err)
		}
		return d, nil
	}
	return decimal.Zero, nil
}

var (
	_ gateway.Gateway       = (*Gateway)(nil)
	_ gateway.StatusChecker = (*Gateway)(nil)
	_ gateway.BalanceSource = (*Gateway)(nil)
)
