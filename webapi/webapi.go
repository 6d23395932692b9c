// Package webapi provides the HTTP API of the ledger. It is organized into
// sub-packages:
// - account: account, history and transfer endpoints
// - payment: deposit, withdrawal, top-up and webhook endpoints
package webapi

import (
	"errors"
	"time"

	"github.com/amirasaad/usdledger/pkg/apiutil"
	"github.com/amirasaad/usdledger/pkg/app"
	"github.com/amirasaad/usdledger/pkg/middleware"
	accountweb "github.com/amirasaad/usdledger/webapi/account"
	paymentweb "github.com/amirasaad/usdledger/webapi/payment"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// SetupApp builds the fiber app with middleware and every route group.
func SetupApp(a *app.App) *fiber.App {
	cfg := a.Config
	log := a.Deps.Logger.With("component", "webapi")

	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return apiutil.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())
	fiberApp.Use(limiter.New(limiter.Config{
		Max:          cfg.RateLimit.MaxRequests,
		Expiration:   cfg.RateLimit.Window,
		KeyGenerator: apiutil.ClientIP,
		LimitReached: func(c *fiber.Ctx) error {
			return apiutil.ProblemDetailsJSON(c, "Too Many Requests",
				errors.New("rate limit exceeded"), fiber.StatusTooManyRequests)
		},
	}))

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "gateways": a.Deps.Gateways.Names()})
	})

	ttl := 24 * time.Hour
	if cfg.Idempotency != nil && cfg.Idempotency.TTL > 0 {
		ttl = cfg.Idempotency.TTL
	}
	idempotency := middleware.Idempotency(a.Deps.Cache, ttl, log)

	accountweb.Routes(fiberApp, a.Ledger, cfg, idempotency, log)
	paymentweb.Routes(fiberApp, a.Ledger, a.Deps.Gateways, cfg, idempotency, log)
	return fiberApp
}
