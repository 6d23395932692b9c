package monitor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/account"
	"github.com/amirasaad/usdledger/pkg/domain/alert"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/provider/notification"
	"github.com/amirasaad/usdledger/pkg/repository"
	"github.com/amirasaad/usdledger/pkg/testutils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

type fixture struct {
	svc      *Service
	uow      repository.UnitOfWork
	notifier *notification.Recorder
	account  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, uow := testutils.NewUoW(t)
	a, err := account.New().WithUserID(uuid.New()).Build()
	require.NoError(t, err)
	accounts, err := uow.AccountRepository()
	require.NoError(t, err)
	require.NoError(t, accounts.Create(context.Background(), a))

	rec := &notification.Recorder{}
	svc := New(uow, rec, Config{
		LargeAmount:       decimal.NewFromInt(10000),
		Window:            10 * time.Minute,
		FrequencyLimit:    5,
		HighRiskCountries: []string{"KP", "IR"},
	}, slog.Default())
	return &fixture{svc: svc, uow: uow, notifier: rec, account: a.ID}
}

// book persists n completed deposits on the fixture account.
func (f *fixture) book(t *testing.T, n int) {
	t.Helper()
	txs, err := f.uow.TransactionRepository()
	require.NoError(t, err)
	for range n {
		now := time.Now().UTC()
		require.NoError(t, txs.Create(context.Background(), &transaction.Transaction{
			ID:        transaction.NewID(),
			AccountID: f.account,
			Type:      transaction.TypeDeposit,
			Amount:    decimal.NewFromInt(10),
			Status:    transaction.StatusCompleted,
			CreatedAt: now,
			UpdatedAt: now,
		}))
	}
}

func (f *fixture) tx(amount, country, geo string) *transaction.Transaction {
	return &transaction.Transaction{
		ID:          transaction.NewID(),
		AccountID:   f.account,
		Type:        transaction.TypeWithdrawal,
		Amount:      decimal.RequireFromString(amount),
		Status:      transaction.StatusCompleted,
		Country:     country,
		Geolocation: geo,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		booked  int
		amount  string
		country string
		geo     string
		want    []string
	}{
		{name: "clean", amount: "50", country: "US"},
		{name: "exactly the large threshold", amount: "10000", country: "US"},
		{name: "large", amount: "10000.01", country: "US", want: []string{alert.FlagLargeTransaction}},
		{name: "five recent is fine", booked: 5, amount: "50"},
		{name: "six recent", booked: 6, amount: "50", want: []string{alert.FlagHighFrequency}},
		{name: "high risk country", amount: "50", country: "kp", want: []string{alert.FlagHighRiskCountry}},
		{name: "high risk geolocation", amount: "50", country: "US", geo: "IR", want: []string{alert.FlagHighRiskCountry}},
		{
			name: "every rule", booked: 6, amount: "20000", geo: "KP",
			want: []string{alert.FlagLargeTransaction, alert.FlagHighFrequency, alert.FlagHighRiskCountry},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.book(t, tt.booked)
			flags, err := f.svc.Evaluate(context.Background(), f.tx(tt.amount, tt.country, tt.geo))
			require.NoError(t, err)
			assert.Equal(t, tt.want, flags)
		})
	}
}

func TestEvaluate_OldTransactionsOutsideWindow(t *testing.T) {
	f := newFixture(t)
	f.book(t, 8)
	f.svc.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }

	flags, err := f.svc.Evaluate(context.Background(), f.tx("50", "US", ""))
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestInspect(t *testing.T) {
	ctx := context.Background()

	t.Run("clean transaction creates nothing", func(t *testing.T) {
		f := newFixture(t)
		a, err := f.svc.Inspect(ctx, f.tx("50", "US", ""))
		require.NoError(t, err)
		assert.Nil(t, a)
		assert.Empty(t, f.notifier.Messages())
	})

	t.Run("flagged transaction alerts once", func(t *testing.T) {
		f := newFixture(t)
		tx := f.tx("25000", "US", "")

		a, err := f.svc.Inspect(ctx, tx)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, tx.ID, a.TransactionID)
		assert.Equal(t, []string{alert.FlagLargeTransaction}, a.Flags)

		again, err := f.svc.Inspect(ctx, tx)
		require.NoError(t, err)
		assert.Nil(t, again)

		alerts, err := f.uow.AlertRepository()
		require.NoError(t, err)
		stored, err := alerts.List(ctx, true, 10)
		require.NoError(t, err)
		assert.Len(t, stored, 1)
		assert.Len(t, f.notifier.Messages(), 1)
	})
}

func TestReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, err := f.svc.Inspect(ctx, f.tx("25000", "US", ""))
	require.NoError(t, err)

	require.NoError(t, f.svc.Review(ctx, a.ID))
	open, err := f.svc.Alerts(ctx, true, 10)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := f.svc.Alerts(ctx, false, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Reviewed)

	assert.ErrorIs(t, f.svc.Review(ctx, uuid.New()), domain.ErrNotFound)
}
