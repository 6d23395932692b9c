package reloadly

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(&config.Reloadly{BaseURL: srv.URL, Token: "tok", Countries: []string{"NG"}},
		gateway.HTTPOptions{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTopUp(t *testing.T) {
	var got topUpRequest
	var raw []byte
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/topups", r.URL.Path)
		var err error
		raw, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &got))
		_, _ = w.Write([]byte(`{"transactionId":4711,"status":"SUCCESSFUL","customIdentifier":"key-1"}`))
	})
	res := g.InitiateWithdrawal(context.Background(), gateway.WithdrawalRequest{
		Amount: decimal.RequireFromString("5.50"), Country: "ng", Destination: "8031234567", IdempotencyKey: "key-1",
	})
	require.Equal(t, gateway.KindSuccess, res.Kind)
	assert.Equal(t, "4711", res.ExternalID)
	assert.Equal(t, "key-1", got.CustomIdentifier)
	assert.Equal(t, "NG", got.RecipientPhone.CountryCode)
	assert.Equal(t, json.Number("5.50"), got.Amount)
	assert.Contains(t, string(raw), `"amount":5.50`)
	assert.True(t, gateway.SettlesOnSuccess(g))
}

func TestTopUp_Failed(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"transactionId":1,"status":"FAILED","message":"operator down"}`))
	})
	res := g.InitiateWithdrawal(context.Background(), gateway.WithdrawalRequest{
		Amount: decimal.NewFromInt(1), Destination: "1",
	})
	assert.Equal(t, gateway.ErrValidation, res.Err.Kind)
}

func TestDepositUnsupported(t *testing.T) {
	g := newTestGateway(t, func(http.ResponseWriter, *http.Request) {})
	res := g.InitiateDeposit(context.Background(), gateway.DepositRequest{})
	assert.Equal(t, gateway.ErrUnsupported, res.Err.Kind)
}

func TestCheckStatus(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/topups/9/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"SUCCESSFUL"}`))
	})
	st, err := g.CheckStatus(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, gateway.StateCompleted, st.State)

	_, err = g.CheckStatus(context.Background(), "../x")
	assert.Error(t, err)
}
