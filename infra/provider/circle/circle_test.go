package circle

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestGateway(t *testing.T, h http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(&config.Circle{BaseURL: srv.URL, ApiKey: "key", Countries: []string{"US", "GB"}},
		gateway.HTTPOptions{Timeout: 200 * time.Millisecond}, logger)
}

func TestInitiateWithdrawal(t *testing.T) {
	var got payoutRequest
	var gotKey, gotAuth string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payouts", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"id":"po_1","status":"pending"}}`))
	})

	res := g.InitiateWithdrawal(context.Background(), gateway.WithdrawalRequest{
		TransactionID:  uuid.New(),
		Amount:         decimal.RequireFromString("100"),
		IdempotencyKey: "idem-1",
		Destination:    "wire_123",
	})
	require.Equal(t, gateway.KindPending, res.Kind)
	assert.Equal(t, "po_1", res.ExternalID)
	assert.Equal(t, "idem-1", gotKey)
	assert.Equal(t, "idem-1", got.IdempotencyKey)
	assert.Equal(t, "Bearer key", gotAuth)
	assert.Equal(t, "100.00", got.Amount.Amount)
	assert.Equal(t, "USD", got.Amount.Currency)
}

func TestInitiateWithdrawal_Errors(t *testing.T) {
	t.Run("missing destination", func(t *testing.T) {
		g := newTestGateway(t, func(http.ResponseWriter, *http.Request) { t.Fatal("no call expected") })
		res := g.InitiateWithdrawal(context.Background(), gateway.WithdrawalRequest{Amount: decimal.NewFromInt(1)})
		assert.Equal(t, gateway.ErrValidation, res.Err.Kind)
	})

	t.Run("timeout", func(t *testing.T) {
		var calls atomic.Int32
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			<-r.Context().Done()
		})
		res := g.InitiateWithdrawal(context.Background(), gateway.WithdrawalRequest{
			Amount: decimal.NewFromInt(1), Destination: "wire_1", IdempotencyKey: "k",
		})
		assert.Equal(t, gateway.ErrTimeout, res.Err.Kind)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("server error", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		res := g.InitiateWithdrawal(context.Background(), gateway.WithdrawalRequest{
			Amount: decimal.NewFromInt(1), Destination: "wire_1",
		})
		assert.Equal(t, gateway.ErrHTTP, res.Err.Kind)
		assert.Equal(t, http.StatusServiceUnavailable, res.Err.Status)
	})

	t.Run("rail rejects", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"id":"po_2","status":"failed","errorCode":"insufficient_funds"}}`))
		})
		res := g.InitiateWithdrawal(context.Background(), gateway.WithdrawalRequest{
			Amount: decimal.NewFromInt(1), Destination: "wire_1",
		})
		assert.Equal(t, gateway.ErrValidation, res.Err.Kind)
	})
}

func TestInitiateDeposit_ReturnsInstructions(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/deposits", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":"dep_1","status":"pending","trackingRef":"CIR123"}}`))
	})
	res := g.InitiateDeposit(context.Background(), gateway.DepositRequest{Amount: decimal.RequireFromString("103.00")})
	require.True(t, res.OK())
	assert.Equal(t, "CIR123", res.MoreInfo["tracking_ref"])
}

func TestCheckStatus_FallsBackToDeposits(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/payouts/dep_1":
			http.NotFound(w, r)
		case "/v1/deposits/dep_1":
			_, _ = w.Write([]byte(`{"data":{"id":"dep_1","status":"complete"}}`))
		}
	})
	st, err := g.CheckStatus(context.Background(), "dep_1")
	require.NoError(t, err)
	assert.Equal(t, gateway.StateCompleted, st.State)
}

func TestPooledBalance(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"available":[{"amount":"1000.50","currency":"USD"},{"amount":"3","currency":"EUR"}]}}`))
	})
	bal, err := g.PooledBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000.5", bal.String())
}

func TestSupportsCountry(t *testing.T) {
	g := New(&config.Circle{Countries: []string{"US", "GB", "CA", "DE", "FR"}}, gateway.HTTPOptions{}, logger)
	assert.True(t, g.SupportsCountry("DE"))
	assert.False(t, g.SupportsCountry("NG"))
}
