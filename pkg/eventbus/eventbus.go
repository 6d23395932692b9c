package eventbus

import (
	"context"

	"github.com/amirasaad/usdledger/pkg/domain/events"
)

// HandlerFunc processes one event. A returned error is logged by the bus and,
// for broker-backed buses, routes the message to the dead letter queue.
type HandlerFunc func(ctx context.Context, e events.Event) error

// Bus defines the contract for publishing and subscribing to domain events.
type Bus interface {
	Register(eventType events.EventType, handler HandlerFunc)
	Emit(ctx context.Context, event events.Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Register(events.EventType, HandlerFunc)     {}
func (Nop) Emit(context.Context, events.Event) error { return nil }
