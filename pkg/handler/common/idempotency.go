// Package common holds middleware shared by event bus handlers.
package common

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/usdledger/pkg/domain/events"
	"github.com/amirasaad/usdledger/pkg/eventbus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTrackerTTL      = time.Hour
	DefaultTrackerCapacity = 10_000
)

// KeyExtractor returns the deduplication key of an event; "" disables the check.
type KeyExtractor func(events.Event) string

// IdempotencyTracker remembers handled keys for a TTL, holding at most
// capacity of them. It only absorbs redeliveries close in time; handlers still
// need a durable check (the monitor has a unique alert per transaction).
type IdempotencyTracker struct {
	mu       sync.Mutex
	expiry   map[string]time.Time
	ttl      time.Duration
	capacity int
	now      func() time.Time
	inflight singleflight.Group
}

// NewIdempotencyTracker returns a tracker; non-positive arguments take the defaults.
func NewIdempotencyTracker(ttl time.Duration, capacity int) *IdempotencyTracker {
	if ttl <= 0 {
		ttl = DefaultTrackerTTL
	}
	if capacity <= 0 {
		capacity = DefaultTrackerCapacity
	}
	return &IdempotencyTracker{
		expiry:   make(map[string]time.Time),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

// Store marks key as handled until the TTL passes. When full, expired keys are
// swept first and then the key closest to expiry is evicted.
func (t *IdempotencyTracker) Store(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if _, ok := t.expiry[key]; !ok && len(t.expiry) >= t.capacity {
		t.evictLocked(now)
	}
	t.expiry[key] = now.Add(t.ttl)
}

func (t *IdempotencyTracker) evictLocked(now time.Time) {
	var oldest string
	var oldestAt time.Time
	for k, at := range t.expiry {
		if !now.Before(at) {
			delete(t.expiry, k)
			continue
		}
		if oldest == "" || at.Before(oldestAt) {
			oldest, oldestAt = k, at
		}
	}
	if len(t.expiry) >= t.capacity && oldest != "" {
		delete(t.expiry, oldest)
	}
}

// Delete forgets key so the next delivery runs the handler again.
func (t *IdempotencyTracker) Delete(key string) {
	t.mu.Lock()
	delete(t.expiry, key)
	t.mu.Unlock()
}

// Seen reports whether key was handled within the TTL.
func (t *IdempotencyTracker) Seen(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.expiry[key]
	if !ok {
		return false
	}
	if !t.now().Before(at) {
		delete(t.expiry, key)
		return false
	}
	return true
}

// Len is the number of keys currently held.
func (t *IdempotencyTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.expiry)
}

// WithIdempotency skips deliveries whose key the tracker has seen. Concurrent
// deliveries of one key share a single handler run; a failed run is not
// recorded, so a redelivery retries it.
func WithIdempotency(
	handler eventbus.HandlerFunc,
	tracker *IdempotencyTracker,
	keyExtractor KeyExtractor,
	handlerName string,
	logger *slog.Logger,
) eventbus.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, e events.Event) error {
		key := keyExtractor(e)
		if key == "" {
			return handler(ctx, e)
		}
		if tracker.Seen(key) {
			logger.Debug("duplicate delivery skipped", "handler", handlerName, "event_type", e.Type(), "key", key)
			return nil
		}
		_, err, _ := tracker.inflight.Do(key, func() (any, error) {
			if tracker.Seen(key) {
				return nil, nil
			}
			if err := handler(ctx, e); err != nil {
				return nil, err
			}
			tracker.Store(key)
			return nil, nil
		})
		return err
	}
}
