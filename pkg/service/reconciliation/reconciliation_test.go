package reconciliation

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	infraeventbus "github.com/amirasaad/usdledger/infra/eventbus"
	"github.com/amirasaad/usdledger/infra/provider/mockgateway"
	"github.com/amirasaad/usdledger/pkg/domain/account"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/provider/identity"
	"github.com/amirasaad/usdledger/pkg/provider/notification"
	"github.com/amirasaad/usdledger/pkg/repository"
	feesvc "github.com/amirasaad/usdledger/pkg/service/fee"
	"github.com/amirasaad/usdledger/pkg/service/ledger"
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

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc      *Service
	circle   *mockgateway.Gateway
	stellar  *mockgateway.Gateway
	notifier *notification.Recorder
}

// newFixture books users 60 + 40, commission 3, custody 103 and a pending
// withdrawal of 10 + 0.50 fee; the ledger total is 113.50.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	_, uow := testutils.NewUoW(t)

	var userAccount uuid.UUID
	err := uow.Do(ctx, func(tx repository.UnitOfWork) error {
		accounts, err := tx.AccountRepository()
		require.NoError(t, err)
		for _, b := range []string{"60", "40"} {
			a, err := account.New().WithUserID(uuid.New()).WithBalance(dec(b)).Build()
			require.NoError(t, err)
			require.NoError(t, accounts.Create(ctx, a))
			userAccount = a.ID
		}
		for name, b := range map[string]string{"commission": "3", "custody": "103"} {
			a, err := account.NewPlatform(name).WithBalance(dec(b)).Build()
			require.NoError(t, err)
			require.NoError(t, accounts.Create(ctx, a))
		}
		txs, err := tx.TransactionRepository()
		require.NoError(t, err)
		return txs.Create(ctx, &transaction.Transaction{
			ID:        transaction.NewID(),
			AccountID: userAccount,
			Type:      transaction.TypeWithdrawal,
			Amount:    dec("10"),
			Fee:       dec("0.5"),
			Delta:     dec("-10.5"),
			Status:    transaction.StatusGatewayPending,
			Gateway:   "circle",
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	f := &fixture{
		circle:   mockgateway.New("circle"),
		stellar:  mockgateway.New("stellar"),
		notifier: &notification.Recorder{},
	}
	sources, err := SourcesFrom(gateway.NewRegistry(f.circle, f.stellar), []string{"circle", "stellar"})
	require.NoError(t, err)
	f.svc = New(uow, sources, f.notifier, "commission", dec("0.01"), slog.Default())
	return f
}

func TestTotalLedgerBalance(t *testing.T) {
	f := newFixture(t)
	total, err := f.svc.TotalLedgerBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "113.50", total.StringFixed(2))
}

func TestReconcile_Tolerance(t *testing.T) {
	tests := []struct {
		name     string
		circle   string
		stellar  string
		balanced bool
	}{
		{"exact", "100", "13.50", true},
		{"drift of 0.005", "100", "13.505", true},
		{"drift of 0.02", "100", "13.52", false},
		{"ledger exceeds rails", "100", "13.48", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.circle.SetPooledBalance(dec(tt.circle))
			f.stellar.SetPooledBalance(dec(tt.stellar))

			ok, err := f.svc.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.balanced, ok)

			msgs := f.notifier.Messages()
			if tt.balanced {
				assert.Empty(t, msgs)
				return
			}
			require.Len(t, msgs, 1)
			assert.Equal(t, DiscrepancySubject, msgs[0].Subject)
			assert.Equal(t, notification.SeverityHigh, msgs[0].Severity)
		})
	}
}

func TestSourcesFrom_Errors(t *testing.T) {
	_, err := SourcesFrom(gateway.NewRegistry(), []string{"circle"})
	assert.Error(t, err)
}

func TestReconcile_AfterTransferWithFee(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	_, uow := testutils.NewUoW(t)

	fees := feesvc.New(uow, logger)
	for typ, flat := range map[transaction.Type]string{transaction.TypeDeposit: "0", transaction.TypeTransfer: "1"} {
		_, err := fees.Set(ctx, typ, dec(flat), dec("0"))
		require.NoError(t, err)
	}
	circle := mockgateway.New("circle")
	registry := gateway.NewRegistry(circle)
	sender, recipient := uuid.New(), uuid.New()
	ledgerSvc := ledger.New(ledger.Deps{
		Uow:      uow,
		Fees:     fees,
		Gateways: registry,
		Verifier: identity.NewStatic(sender, recipient),
		Bus:      infraeventbus.NewWithMemory(logger),
		Logger:   logger,
	}, ledger.Config{})
	require.NoError(t, ledgerSvc.Bootstrap(ctx))
	for _, id := range []uuid.UUID{sender, recipient} {
		_, err := ledgerSvc.OpenAccount(ctx, id)
		require.NoError(t, err)
	}

	dep, err := ledgerSvc.Deposit(ctx, ledger.DepositCommand{UserID: sender, Amount: dec("200"), Gateway: "circle", Country: "US"})
	require.NoError(t, err)
	_, err = ledgerSvc.HandleCallback(ctx, gateway.Callback{
		Gateway: "circle", ExternalID: dep.Transaction.ExternalRef(), Status: gateway.StateCompleted,
	})
	require.NoError(t, err)
	circle.SetPooledBalance(dec("200"))

	_, err = ledgerSvc.Transfer(ctx, ledger.TransferCommand{SenderID: sender, RecipientID: recipient, Amount: dec("100")})
	require.NoError(t, err)

	sources, err := SourcesFrom(registry, []string{"circle"})
	require.NoError(t, err)
	notifier := &notification.Recorder{}
	svc := New(uow, sources, notifier, account.CommissionAccount, dec("0.01"), logger)

	report, err := svc.Check(ctx, svc.Tolerance())
	require.NoError(t, err)
	assert.Equal(t, "200.00", report.Ledger.StringFixed(2))
	assert.True(t, report.Balanced, "difference %s", report.Difference)

	ok, err := svc.Reconcile(ctx, svc.Tolerance())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, notifier.Messages())
}
