package middleware

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	infracache "github.com/amirasaad/usdledger/infra/cache"
	"github.com/amirasaad/usdledger/pkg/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idempotentApp(t *testing.T, handler fiber.Handler) *fiber.App {
	t.Helper()
	store := infracache.NewMemoryCache(time.Minute)
	t.Cleanup(store.Close)
	app := fiber.New()
	app.Post("/writes", Idempotency(store, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil))), handler)
	return app
}

func body(t *testing.T, r io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestIdempotency_Replays(t *testing.T) {
	var calls atomic.Int32
	app := idempotentApp(t, func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})

	first := testutils.MakeRequest(app, fiber.MethodPost, "/writes", `{"amount":"10"}`, "", IdempotencyKeyHeader, "k1")
	second := testutils.MakeRequest(app, fiber.MethodPost, "/writes", `{"amount":"10"}`, "", IdempotencyKeyHeader, "k1")

	assert.Equal(t, fiber.StatusCreated, first.StatusCode)
	assert.Equal(t, fiber.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get(ReplayedHeader))
	assert.JSONEq(t, body(t, first.Body), body(t, second.Body))
	assert.Equal(t, int32(1), calls.Load())

	// a different key runs the handler again
	third := testutils.MakeRequest(app, fiber.MethodPost, "/writes", `{"amount":"10"}`, "", IdempotencyKeyHeader, "k2")
	assert.Equal(t, fiber.StatusCreated, third.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotency_NoKeyAlwaysRuns(t *testing.T) {
	var calls atomic.Int32
	app := idempotentApp(t, func(c *fiber.Ctx) error {
		calls.Add(1)
		return c.SendStatus(fiber.StatusAccepted)
	})
	for range 3 {
		testutils.MakeRequest(app, fiber.MethodPost, "/writes", `{}`, "")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestIdempotency_RejectsDifferentBody(t *testing.T) {
	app := idempotentApp(t, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })

	testutils.MakeRequest(app, fiber.MethodPost, "/writes", `{"amount":"10"}`, "", IdempotencyKeyHeader, "k")
	resp := testutils.MakeRequest(app, fiber.MethodPost, "/writes", `{"amount":"11"}`, "", IdempotencyKeyHeader, "k")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestIdempotency_InternalErrorsNotStored(t *testing.T) {
	var calls atomic.Int32
	app := idempotentApp(t, func(c *fiber.Ctx) error {
		if calls.Add(1) == 1 {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	first := testutils.MakeRequest(app, fiber.MethodPost, "/writes", `{}`, "", IdempotencyKeyHeader, "k")
	second := testutils.MakeRequest(app, fiber.MethodPost, "/writes", `{}`, "", IdempotencyKeyHeader, "k")
	assert.Equal(t, fiber.StatusInternalServerError, first.StatusCode)
	assert.Equal(t, fiber.StatusCreated, second.StatusCode)
}

func TestIdempotency_ConcurrentDuplicates(t *testing.T) {
	var calls atomic.Int32
	app := idempotentApp(t, func(c *fiber.Ctx) error {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return c.Status(fiber.StatusCreated).SendString("done")
	})

	var wg sync.WaitGroup
	statuses := make([]int, 5)
	for i := range statuses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := testutils.MakeRequest(app, fiber.MethodPost, "/writes", `{}`, "", IdempotencyKeyHeader, "same")
			statuses[i] = resp.StatusCode
			assert.True(t, strings.HasPrefix(body(t, resp.Body), "done"))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
	for _, s := range statuses {
		assert.Equal(t, fiber.StatusCreated, s)
	}
}
