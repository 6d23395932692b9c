package account_test

import (
	"testing"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/account"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuild(t *testing.T) {
	t.Parallel()

	acc, err := account.New().WithUserID(uuid.New()).Build()
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, acc.ID)
	assert.False(t, acc.IsPlatform())
	assert.True(t, acc.Balance.IsZero())

	_, err = account.New().Build()
	assert.ErrorIs(t, err, account.ErrMissingOwner)

	p, err := account.NewPlatform(account.CommissionAccount).Build()
	require.NoError(t, err)
	assert.True(t, p.IsPlatform())
	assert.Nil(t, p.UserID)

	_, err = account.NewPlatform("").Build()
	assert.ErrorIs(t, err, account.ErrMissingName)

	_, err = account.New().WithUserID(uuid.New()).WithBalance(dec("-1")).Build()
	assert.ErrorIs(t, err, account.ErrNegativeBalance)
}

func TestApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		balance string
		delta   string
		want    string
		wantErr error
	}{
		{"credit", "10.00", "5.25", "15.25", nil},
		{"debit", "10.00", "-10.00", "0.00", nil},
		{"overdraw", "10.00", "-10.01", "10.00", domain.ErrInsufficientFunds},
		{"zero delta", "10.00", "0", "10.00", domain.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			acc, err := account.New().WithUserID(uuid.New()).WithBalance(dec(tt.balance)).Build()
			require.NoError(t, err)

			got, err := acc.Apply(dec(tt.delta))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.True(t, got.Equal(dec(tt.want)), "got %s", got)
			assert.True(t, acc.Balance.Equal(dec(tt.want)))
		})
	}
}
