package mockgateway

import (
	"context"
	"testing"

	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGateway_Scripts(t *testing.T) {
	g := New("mock", WithCountries("US")).
		ScriptWithdrawals(
			gateway.Failure(gateway.NewError("", gateway.ErrTimeout, "slow")),
			gateway.Success("", nil),
		)
	ctx := context.Background()

	first := g.InitiateWithdrawal(ctx, gateway.WithdrawalRequest{IdempotencyKey: "k", Amount: decimal.NewFromInt(5)})
	assert.Equal(t, gateway.ErrTimeout, first.Err.Kind)
	assert.Equal(t, "mock", first.Err.Gateway)

	second := g.InitiateWithdrawal(ctx, gateway.WithdrawalRequest{IdempotencyKey: "k"})
	assert.Equal(t, gateway.KindSuccess, second.Kind)
	assert.NotEmpty(t, second.ExternalID)

	third := g.InitiateWithdrawal(ctx, gateway.WithdrawalRequest{IdempotencyKey: "k"})
	assert.Equal(t, gateway.KindSuccess, third.Kind, "last outcome repeats")

	dep := g.InitiateDeposit(ctx, gateway.DepositRequest{})
	assert.Equal(t, gateway.KindPending, dep.Kind)

	assert.Len(t, g.Calls(), 4)
	assert.True(t, g.SupportsCountry("us"))
	assert.False(t, g.SupportsCountry("NG"))
}

func TestGateway_StatusAndBalance(t *testing.T) {
	g := New("mock")
	ctx := context.Background()

	st, err := g.CheckStatus(ctx, "x")
	assert.NoError(t, err)
	assert.Equal(t, gateway.StatePending, st.State)

	g.SetStatus("x", gateway.Status{State: gateway.StateFailed, Reason: "declined"})
	st, _ = g.CheckStatus(ctx, "x")
	assert.Equal(t, gateway.StateFailed, st.State)

	g.SetPooledBalance(decimal.RequireFromString("10.50"))
	bal, _ := g.PooledBalance(ctx)
	assert.Equal(t, "10.5", bal.String())
}
