package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestAdd(t *testing.T) {
	s := New(discard)
	require.NoError(t, s.Add(Job{Name: "off", Run: func(context.Context) error { return nil }}))
	assert.Empty(t, s.cron.Entries())

	require.NoError(t, s.Add(Job{Name: "poll", Schedule: "@every 1m", Run: func(context.Context) error { return nil }}))
	assert.Len(t, s.cron.Entries(), 1)

	assert.Error(t, s.Add(Job{Name: "bad", Schedule: "not a schedule", Run: func(context.Context) error { return nil }}))
}

func TestJobRun(t *testing.T) {
	s := New(discard)
	var deadline bool
	runs := 0
	require.NoError(t, s.Add(Job{
		Name:     "reconcile",
		Schedule: "@daily",
		Timeout:  time.Second,
		Run: func(ctx context.Context) error {
			runs++
			_, deadline = ctx.Deadline()
			return errors.New("rails unavailable")
		},
	}))
	require.NoError(t, s.Add(Job{
		Name:     "explodes",
		Schedule: "@daily",
		Run:      func(context.Context) error { panic("boom") },
	}))

	for _, e := range s.cron.Entries() {
		assert.NotPanics(t, e.WrappedJob.Run)
	}
	assert.Equal(t, 1, runs)
	assert.True(t, deadline)
}

func TestStopCancelsContext(t *testing.T) {
	s := New(discard)
	s.Start()
	s.Stop()
	assert.Error(t, s.ctx.Err())
}
