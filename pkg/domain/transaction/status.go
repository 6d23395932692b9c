package transaction

import (
	"fmt"

	"github.com/amirasaad/usdledger/pkg/domain"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusInitiated      Status = "initiated"
	StatusValidating     Status = "validating"
	StatusReserved       Status = "reserved"
	StatusGatewayPending Status = "gateway_pending"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

var transitions = map[Status][]Status{
	StatusInitiated:      {StatusValidating},
	StatusValidating:     {StatusReserved, StatusGatewayPending, StatusFailed},
	StatusReserved:       {StatusGatewayPending, StatusCompleted, StatusFailed},
	StatusGatewayPending: {StatusCompleted, StatusFailed},
}

// IsTerminal reports whether s is completed or failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsPending reports whether funds or an external operation are still in flight.
func (s Status) IsPending() bool {
	return s == StatusReserved || s == StatusGatewayPending
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusInitiated, StatusValidating, StatusReserved,
		StatusGatewayPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition when from -> to is not allowed.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	return nil
}

// Machine walks a single in-flight operation through its states. The
// orchestrator uses it for the states that are never persisted (initiated,
// validating) and to check every step it later writes.
type Machine struct {
	current Status
	trail   []Status
}

// NewMachine starts in StatusInitiated.
func NewMachine() *Machine {
	return &Machine{current: StatusInitiated, trail: []Status{StatusInitiated}}
}

// Current returns the current state.
func (m *Machine) Current() Status { return m.current }

// Trail returns every state visited, in order.
func (m *Machine) Trail() []Status { return append([]Status(nil), m.trail...) }

// To moves the machine to next.
func (m *Machine) To(next Status) error {
	if err := CheckTransition(m.current, next); err != nil {
		return err
	}
	m.current = next
	m.trail = append(m.trail, next)
	return nil
}
