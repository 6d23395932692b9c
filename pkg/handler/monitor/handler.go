// Package monitor subscribes the transaction monitor to the event bus.
package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/usdledger/pkg/domain/alert"
	"github.com/amirasaad/usdledger/pkg/domain/events"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/eventbus"
	"github.com/amirasaad/usdledger/pkg/handler/common"
)

// Inspector is the part of the monitor service the handler drives.
type Inspector interface {
	Inspect(ctx context.Context, tx *transaction.Transaction) (*alert.Alert, error)
}

// HandleFinalized inspects every finalized transaction. Rows that did not
// complete moved no money and are ignored.
func HandleFinalized(inspector Inspector, logger *slog.Logger) eventbus.HandlerFunc {
	return func(ctx context.Context, e events.Event) error {
		log := logger.With("handler", "monitor", "event_type", e.Type())
		evt, ok := e.(*events.TransactionFinalized)
		if !ok {
			log.Error("unexpected event type", "event", e)
			return nil
		}
		if evt.Status != transaction.StatusCompleted {
			return nil
		}
		a, err := inspector.Inspect(ctx, evt.Transaction())
		if err != nil {
			log.Error("inspection failed", "transaction_id", evt.TransactionID, "error", err)
			return fmt.Errorf("inspect %s: %w", evt.TransactionID, err)
		}
		if a != nil {
			log.Info("alert raised", "alert_id", a.ID, "transaction_id", evt.TransactionID)
		}
		return nil
	}
}

// TransactionKey deduplicates deliveries of the same finalized row.
func TransactionKey(e events.Event) string {
	if evt, ok := e.(*events.TransactionFinalized); ok {
		return evt.TransactionID.String()
	}
	return ""
}

// Register subscribes the monitor to transaction.finalized.
func Register(bus eventbus.Bus, inspector Inspector, logger *slog.Logger) {
	tracker := common.NewIdempotencyTracker(common.DefaultTrackerTTL, common.DefaultTrackerCapacity)
	bus.Register(
		events.EventTypeTransactionFinalized,
		common.WithIdempotency(HandleFinalized(inspector, logger), tracker, TransactionKey, "monitor", logger),
	)
}
