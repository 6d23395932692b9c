// Command bus_smoketest emits one transaction.finalized event through the
// configured event bus and waits for it to come back to a subscriber. Use it
// to check a local Kafka or Redis before starting the server:
//
//	EVENT_BUS_DRIVER=kafka go run ./scripts/bus_smoketest
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/amirasaad/usdledger/infra/initializer"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/domain/events"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const waitFor = 30 * time.Second

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	logger := initializer.NewLogger(cfg.Log, os.Stdout)
	bus, closer, err := initializer.NewEventBus(cfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	userID := uuid.New()
	sent := events.NewTransactionFinalized(&transaction.Transaction{
		ID:        transaction.NewID(),
		AccountID: uuid.New(),
		UserID:    &userID,
		Type:      transaction.TypeDeposit,
		Status:    transaction.StatusCompleted,
		Amount:    decimal.RequireFromString("1.00"),
		Gateway:   "smoketest",
	})

	got := make(chan *events.TransactionFinalized, 1)
	bus.Register(events.EventTypeTransactionFinalized, func(_ context.Context, e events.Event) error {
		if tf, ok := e.(*events.TransactionFinalized); ok && tf.EventID == sent.EventID {
			select {
			case got <- tf:
			default:
			}
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	if err := bus.Emit(ctx, sent); err != nil {
		return err
	}
	logger.Info("event emitted", "event_id", sent.EventID, "driver", cfg.EventBus.Driver)

	select {
	case tf := <-got:
		logger.Info("event delivered", "event_id", tf.EventID, "transaction_id", tf.TransactionID,
			"latency", time.Since(tf.OccurredAt))
		return nil
	case <-ctx.Done():
		return errors.New("event was not delivered in time")
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("bus smoke test failed", "error", err)
		os.Exit(1)
	}
}
