package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amirasaad/usdledger/pkg/domain/events"
	"github.com/amirasaad/usdledger/pkg/eventbus"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encode(event events.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	out, err := json.Marshal(envelope{Type: event.Type(), Payload: data})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return out, nil
}

func decode(raw []byte) (events.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	constructor, ok := events.EventTypes[events.EventType(env.Type)]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	evt := constructor()
	if err := json.Unmarshal(env.Payload, evt); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return evt, nil
}

// nameFor turns "transaction.finalized" into "<prefix>:transaction:finalized".
func nameFor(prefix string, eventType events.EventType) string {
	parts := strings.Split(strings.ToLower(eventType.String()), ".")
	return prefix + ":" + strings.Join(parts, ":")
}

// dispatch runs every handler, recovering panics, and reports whether all succeeded.
func dispatch(
	ctx context.Context,
	logger *slog.Logger,
	evt events.Event,
	handlers []eventbus.HandlerFunc,
) bool {
	ok := true
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					ok = false
					logger.Error("panic recovered in event handler", "type", evt.Type(), "panic", r)
				}
			}()
			if err := h(ctx, evt); err != nil {
				ok = false
				logger.Error("failed to process event", "type", evt.Type(), "error", err)
			}
		}()
	}
	return ok
}
