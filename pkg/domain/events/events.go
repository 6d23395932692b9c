// Package events defines the domain events the ledger publishes.
package events

// EventType represents the type of an event in the system.
type EventType string

const (
	// EventTypeTransactionFinalized is emitted once a transaction reaches a
	// terminal status and the unit of work that put it there has committed.
	EventTypeTransactionFinalized EventType = "transaction.finalized"
)

// String returns the string representation of the event type.
func (et EventType) String() string {
	return string(et)
}

// Event is implemented by every domain event.
type Event interface {
	Type() string
}

// EventTypes maps each event type to a constructor, for decoding events read
// back from a broker.
var EventTypes = map[EventType]func() Event{
	EventTypeTransactionFinalized: func() Event { return &TransactionFinalized{} },
}
