package money_test

import (
	"testing"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundHalfUp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"0.015", "0.02"},
		{"0.014", "0.01"},
		{"2.005", "2.01"},
		{"3", "3.00"},
		{"0.0049", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := money.RoundHalfUp(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, money.Format(got))
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	d, err := money.Parse("100.50")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("100.5")))

	for _, bad := range []string{"0", "-1", "1.001", "abc", ""} {
		_, err := money.Parse(bad)
		assert.ErrorIs(t, err, domain.ErrValidation, bad)
	}
}

func TestMinorUnits(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int64(10350), money.ToMinorUnits(decimal.RequireFromString("103.50")))
	assert.Equal(t, "103.50", money.Format(money.FromMinorUnits(10350)))
}
