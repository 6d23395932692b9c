package common

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirasaad/usdledger/pkg/domain/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	id uuid.UUID
}

func (e *testEvent) Type() string { return "test.event" }

func byID(e events.Event) string {
	if te, ok := e.(*testEvent); ok {
		return te.id.String()
	}
	return ""
}

func TestIdempotencyTracker(t *testing.T) {
	t.Parallel()
	tracker := NewIdempotencyTracker(0, 0)
	assert.False(t, tracker.Seen("k"))
	tracker.Store("k")
	assert.True(t, tracker.Seen("k"))
	tracker.Delete("k")
	assert.False(t, tracker.Seen("k"))
}

func TestIdempotencyTracker_Expires(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewIdempotencyTracker(time.Minute, 10)
	tracker.now = func() time.Time { return now }

	tracker.Store("k")
	now = now.Add(59 * time.Second)
	assert.True(t, tracker.Seen("k"))
	now = now.Add(time.Second)
	assert.False(t, tracker.Seen("k"))
	assert.Zero(t, tracker.Len())
}

func TestIdempotencyTracker_Bounded(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewIdempotencyTracker(time.Hour, 3)
	tracker.now = func() time.Time { return now }

	for i := range 50 {
		now = now.Add(time.Second)
		tracker.Store(uuid.NewString())
		assert.LessOrEqual(t, tracker.Len(), 3, "after %d stores", i+1)
	}

	now = now.Add(time.Second)
	tracker.Store("newest")
	assert.True(t, tracker.Seen("newest"))
	assert.Equal(t, 3, tracker.Len())
}

func TestWithIdempotency(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	t.Run("empty key always runs", func(t *testing.T) {
		t.Parallel()
		var calls int
		wrapped := WithIdempotency(func(context.Context, events.Event) error {
			calls++
			return nil
		}, NewIdempotencyTracker(0, 0), func(events.Event) string { return "" }, "test", logger)

		require.NoError(t, wrapped(ctx, &testEvent{id: uuid.New()}))
		require.NoError(t, wrapped(ctx, &testEvent{id: uuid.New()}))
		assert.Equal(t, 2, calls)
	})

	t.Run("second delivery is skipped", func(t *testing.T) {
		t.Parallel()
		var calls int
		wrapped := WithIdempotency(func(context.Context, events.Event) error {
			calls++
			return nil
		}, NewIdempotencyTracker(0, 0), byID, "test", logger)

		e := &testEvent{id: uuid.New()}
		require.NoError(t, wrapped(ctx, e))
		require.NoError(t, wrapped(ctx, e))
		assert.Equal(t, 1, calls)
	})

	t.Run("failure allows retry", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("handler error")
		fail := true
		var calls int
		tracker := NewIdempotencyTracker(0, 0)
		wrapped := WithIdempotency(func(context.Context, events.Event) error {
			calls++
			if fail {
				return boom
			}
			return nil
		}, tracker, byID, "test", logger)

		e := &testEvent{id: uuid.New()}
		require.ErrorIs(t, wrapped(ctx, e), boom)
		assert.False(t, tracker.Seen(e.id.String()))

		fail = false
		require.NoError(t, wrapped(ctx, e))
		assert.Equal(t, 2, calls)
		assert.True(t, tracker.Seen(e.id.String()))
	})

	t.Run("concurrent duplicates run once", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		release := make(chan struct{})
		wrapped := WithIdempotency(func(context.Context, events.Event) error {
			calls.Add(1)
			<-release
			return nil
		}, NewIdempotencyTracker(0, 0), byID, "test", logger)

		e := &testEvent{id: uuid.New()}
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, wrapped(ctx, e))
			}()
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()
		wrapped := WithIdempotency(func(context.Context, events.Event) error { return nil },
			NewIdempotencyTracker(0, 0), byID, "test", nil)
		require.NoError(t, wrapped(ctx, &testEvent{id: uuid.New()}))
	})
}
