// Package mockgateway is a scripted payment rail for tests and local
// development.
package mockgateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway simulates a rail. By default every call is accepted as pending
// with a fresh external id; Script queues explicit outcomes instead.
//
// It is NOT for production use.
type Gateway struct {
	mu        sync.Mutex
	name      string
	countries []string
	deposits  []gateway.Result
	payouts   []gateway.Result
	statuses  map[string]gateway.Status
	pooled    decimal.Decimal
	settles   bool
	calls     []Call
}

// Call records one request the mock received.
type Call struct {
	Op             string
	IdempotencyKey string
	Amount         decimal.Decimal
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCountries limits SupportsCountry; by default every country is served.
func WithCountries(countries ...string) Option {
	return func(g *Gateway) { g.countries = countries }
}

// WithSyncSettlement makes Success results final, like an airtime rail.
func WithSyncSettlement() Option {
	return func(g *Gateway) { g.settles = true }
}

func New(name string, opts ...Option) *Gateway {
	g := &Gateway{name: name, statuses: make(map[string]gateway.Status)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Name() string { return g.name }

func (g *Gateway) SupportsCountry(country string) bool {
	if len(g.countries) == 0 {
		return true
	}
	return gateway.SupportsCountry(g.countries, country)
}

// ScriptDeposits queues deposit outcomes; the last one repeats.
func (g *Gateway) ScriptDeposits(results ...gateway.Result) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deposits = append(g.deposits, results...)
	return g
}

// ScriptWithdrawals queues withdrawal outcomes; the last one repeats.
func (g *Gateway) ScriptWithdrawals(results ...gateway.Result) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payouts = append(g.payouts, results...)
	return g
}

// SetStatus sets what CheckStatus reports for externalID.
func (g *Gateway) SetStatus(externalID string, st gateway.Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[externalID] = st
}

// SetPooledBalance sets what PooledBalance reports.
func (g *Gateway) SetPooledBalance(d decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pooled = d
}

// Calls returns the requests received so far.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

func (g *Gateway) InitiateDeposit(_ context.Context, req gateway.DepositRequest) gateway.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Op: "deposit", IdempotencyKey: req.IdempotencyKey, Amount: req.Amount})
	return g.pop(&g.deposits)
}

func (g *Gateway) InitiateWithdrawal(_ context.Context, req gateway.WithdrawalRequest) gateway.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Op: "withdrawal", IdempotencyKey: req.IdempotencyKey, Amount: req.Amount})
	return g.pop(&g.payouts)
}

func (g *Gateway) pop(queue *[]gateway.Result) gateway.Result {
	if len(*queue) == 0 {
		return gateway.Pending(fmt.Sprintf("%s_%s", g.name, uuid.NewString()), nil)
	}
	r := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	if r.OK() && r.ExternalID == "" {
		r.ExternalID = fmt.Sprintf("%s_%s", g.name, uuid.NewString())
	}
	if r.Err != nil && r.Err.Gateway == "" {
		e := *r.Err
		e.Gateway = g.name
		r.Err = &e
	}
	return r
}

func (g *Gateway) CheckStatus(_ context.Context, externalID string) (gateway.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.statuses[externalID]
	if !ok {
		return gateway.Status{State: gateway.StatePending}, nil
	}
	return st, nil
}

func (g *Gateway) PooledBalance(context.Context) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pooled, nil
}

func (g *Gateway) SettlesOnSuccess() bool { return g.settles }

var (
	_ gateway.Gateway       = (*Gateway)(nil)
	_ gateway.StatusChecker = (*Gateway)(nil)
	_ gateway.BalanceSource = (*Gateway)(nil)
	_ gateway.SyncSettler   = (*Gateway)(nil)
)
