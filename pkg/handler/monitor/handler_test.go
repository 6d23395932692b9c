package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	infraeventbus "github.com/amirasaad/usdledger/infra/eventbus"
	"github.com/amirasaad/usdledger/pkg/domain/alert"
	"github.com/amirasaad/usdledger/pkg/domain/events"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	mu   sync.Mutex
	seen []uuid.UUID
	err  error
}

func (f *fakeInspector) Inspect(_ context.Context, tx *transaction.Transaction) (*alert.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, tx.ID)
	if f.err != nil {
		return nil, f.err
	}
	return alert.New(tx.ID, []string{alert.FlagLargeTransaction}), nil
}

func (f *fakeInspector) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func finalized(status transaction.Status) *events.TransactionFinalized {
	return events.NewTransactionFinalized(&transaction.Transaction{
		ID:        transaction.NewID(),
		AccountID: uuid.New(),
		Type:      transaction.TypeWithdrawal,
		Status:    status,
		Amount:    decimal.NewFromInt(20000),
	})
}

func TestHandleFinalized(t *testing.T) {
	ctx := context.Background()

	t.Run("completed rows are inspected", func(t *testing.T) {
		f := &fakeInspector{}
		evt := finalized(transaction.StatusCompleted)
		require.NoError(t, HandleFinalized(f, discard)(ctx, evt))
		assert.Equal(t, []uuid.UUID{evt.TransactionID}, f.seen)
	})

	t.Run("failed rows are ignored", func(t *testing.T) {
		f := &fakeInspector{}
		require.NoError(t, HandleFinalized(f, discard)(ctx, finalized(transaction.StatusFailed)))
		assert.Zero(t, f.calls())
	})

	t.Run("inspection errors surface", func(t *testing.T) {
		f := &fakeInspector{err: errors.New("db down")}
		assert.Error(t, HandleFinalized(f, discard)(ctx, finalized(transaction.StatusCompleted)))
	})
}

func TestRegister_DuplicateDeliveries(t *testing.T) {
	bus := infraeventbus.NewWithMemory(discard)
	f := &fakeInspector{}
	Register(bus, f, discard)

	evt := finalized(transaction.StatusCompleted)
	for range 3 {
		require.NoError(t, bus.Emit(context.Background(), evt))
	}
	require.NoError(t, bus.Emit(context.Background(), finalized(transaction.StatusCompleted)))
	assert.Equal(t, 2, f.calls())
}
