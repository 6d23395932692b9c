package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/amirasaad/usdledger/pkg/domain/events"
	"github.com/amirasaad/usdledger/pkg/eventbus"
)

// MemoryEventBus dispatches synchronously on the emitting goroutine. Tests use it.
type MemoryEventBus struct {
	handlers  map[events.EventType][]eventbus.HandlerFunc
	mu        sync.RWMutex
	logger    *slog.Logger
	published []events.Event
}

// NewWithMemory creates a new in-memory event bus.
func NewWithMemory(logger *slog.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		handlers: make(map[events.EventType][]eventbus.HandlerFunc),
		logger:   logger.With("bus", "memory"),
	}
}

func (b *MemoryEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

func (b *MemoryEventBus) Emit(ctx context.Context, event events.Event) error {
	b.mu.Lock()
	b.published = append(b.published, event)
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[events.EventType(event.Type())]...)
	b.mu.Unlock()

	dispatch(ctx, b.logger, event, handlers)
	return nil
}

// Published returns every event emitted so far.
func (b *MemoryEventBus) Published() []events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]events.Event(nil), b.published...)
}

var _ eventbus.Bus = (*MemoryEventBus)(nil)

type queued struct {
	ctx   context.Context
	event events.Event
}

// ErrBusClosed is returned by Emit after Close.
var ErrBusClosed = errors.New("event bus closed")

// ErrQueueFull is returned when an event is dropped because every worker is
// busy and the queue has no room.
var ErrQueueFull = errors.New("event queue full")

// MemoryAsyncEventBus queues events and dispatches them on worker goroutines,
// so handlers never run on the request path. Emit never waits: a full queue
// drops the event.
type MemoryAsyncEventBus struct {
	handlers map[events.EventType][]eventbus.HandlerFunc
	mu       sync.RWMutex
	eventCh  chan queued
	closed   bool
	dropped  atomic.Int64
	wg       sync.WaitGroup
	log      *slog.Logger
}

// NewWithMemoryAsync starts workers goroutines reading a queue of size buffer.
func NewWithMemoryAsync(logger *slog.Logger, workers, buffer int) *MemoryAsyncEventBus {
	if workers <= 0 {
		workers = 1
	}
	b := &MemoryAsyncEventBus{
		handlers: make(map[events.EventType][]eventbus.HandlerFunc),
		eventCh:  make(chan queued, buffer),
		log:      logger.With("bus", "memory-async"),
	}
	for range workers {
		b.wg.Add(1)
		go b.process()
	}
	return b
}

func (b *MemoryAsyncEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// Emit enqueues the event. The handler context is detached from the caller's
// cancellation so a finished request does not abort its handlers.
func (b *MemoryAsyncEventBus) Emit(ctx context.Context, event events.Event) error {
	// The read lock keeps Close from closing the channel under a send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	select {
	case b.eventCh <- queued{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		n := b.dropped.Add(1)
		b.log.Warn("event dropped, queue full", "event_type", event.Type(), "dropped_total", n)
		return ErrQueueFull
	}
}

// Dropped is the number of events discarded because the queue was full.
func (b *MemoryAsyncEventBus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *MemoryAsyncEventBus) process() {
	defer b.wg.Done()
	for w := range b.eventCh {
		b.mu.RLock()
		handlers := append([]eventbus.HandlerFunc(nil), b.handlers[events.EventType(w.event.Type())]...)
		b.mu.RUnlock()
		dispatch(w.ctx, b.log, w.event, handlers)
	}
}

// Close drains the queue and waits for the workers. Later Emits fail with
// ErrBusClosed.
func (b *MemoryAsyncEventBus) Close() error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.eventCh)
	}
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

var _ eventbus.Bus = (*MemoryAsyncEventBus)(nil)
