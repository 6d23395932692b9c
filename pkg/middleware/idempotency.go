package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/amirasaad/usdledger/pkg/apiutil"
	"github.com/amirasaad/usdledger/pkg/cache"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

var errKeyReuse = errors.New("idempotency key was used with a different request")

// Idempotency replays the stored response of a write that carried the same
// Idempotency-Key. Keys are scoped to the caller and route. Concurrent
// requests with one key run the handler once and share its response.
// Internal errors and rate limiting are not stored, so those may be retried.
func Idempotency(store cache.ResponseCache, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	var inflight singleflight.Group
	return func(c *fiber.Ctx) error {
		key := c.Get(IdempotencyKeyHeader)
		if key == "" {
			return c.Next()
		}
		if len(key) > 255 {
			return apiutil.ProblemDetailsJSON(c, "Invalid Idempotency-Key", nil, "key longer than 255 characters", fiber.StatusBadRequest)
		}
		scoped := scope(c) + ":" + key
		sum := sha256.Sum256(c.Body())
		fingerprint := hex.EncodeToString(sum[:])
		log := logger.With("idempotency_key", key, "path", c.Path())

		cached, err := store.Get(c.UserContext(), scoped)
		if err != nil {
			log.Error("idempotency lookup failed", "error", err)
		}
		if cached != nil {
			return replay(c, cached, fingerprint, log)
		}

		ran := false
		v, err, _ := inflight.Do(scoped, func() (any, error) {
			ran = true
			if err := c.Next(); err != nil {
				return nil, err
			}
			resp := &cache.Response{
				Status:      c.Response().StatusCode(),
				ContentType: string(c.Response().Header.ContentType()),
				Body:        append([]byte(nil), c.Response().Body()...),
				Fingerprint: fingerprint,
			}
			if resp.Status != fiber.StatusInternalServerError && resp.Status != fiber.StatusTooManyRequests {
				if err := store.Set(c.UserContext(), scoped, resp, ttl); err != nil {
					log.Error("idempotency store failed", "error", err)
				}
			}
			return resp, nil
		})
		if err != nil {
			return err
		}
		if ran {
			return nil
		}
		return replay(c, v.(*cache.Response), fingerprint, log)
	}
}

func replay(c *fiber.Ctx, resp *cache.Response, fingerprint string, log *slog.Logger) error {
	if resp.Fingerprint != fingerprint {
		return apiutil.ProblemDetailsJSON(c, "Idempotency-Key reuse", errKeyReuse, fiber.StatusUnprocessableEntity)
	}
	log.Info("🔁 replaying stored response", "status", resp.Status)
	c.Set(ReplayedHeader, "true")
	if resp.ContentType != "" {
		c.Set(fiber.HeaderContentType, resp.ContentType)
	}
	return c.Status(resp.Status).Send(resp.Body)
}

func scope(c *fiber.Ctx) string {
	subject := "anonymous"
	if token, ok := c.Locals(UserContextKey).(*jwt.Token); ok {
		if sub, err := token.Claims.GetSubject(); err == nil && sub != "" {
			subject = sub
		}
	}
	return c.Method() + " " + c.Route().Path + ":" + subject
}
