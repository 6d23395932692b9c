// Package payment serves the gateway-backed routes: deposits, withdrawals,
// airtime top-ups and the gateway webhooks.
package payment

import (
	"log/slog"

	"github.com/amirasaad/usdledger/pkg/apiutil"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/mapper"
	"github.com/amirasaad/usdledger/pkg/middleware"
	"github.com/amirasaad/usdledger/pkg/service/ledger"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the payment routes and the unauthenticated webhooks.
//
// Routes:
//   - POST /deposits          : start a deposit; credited on gateway completion.
//   - POST /withdrawals       : reserve and pay out to an external destination.
//   - POST /topups            : reserve and buy airtime.
//   - POST /webhooks/stripe   : Stripe events, verified by Stripe-Signature.
//   - POST /webhooks/:gateway : generic callbacks, verified by X-Signature.
func Routes(
	app *fiber.App,
	svc *ledger.Service,
	registry *gateway.Registry,
	cfg *config.App,
	idempotency fiber.Handler,
	logger *slog.Logger,
) {
	auth := middleware.JwtProtected(cfg.Auth.Jwt)
	claim := cfg.Auth.Jwt.UserClaim
	app.Post("/deposits", auth, idempotency, Deposit(svc, claim, logger))
	app.Post("/withdrawals", auth, idempotency, Withdraw(svc, claim, logger))
	app.Post("/topups", auth, idempotency, TopUp(svc, claim, logger))

	secret := cfg.Gateways.CallbackSecret
	app.Post("/webhooks/stripe", Webhook(svc, registry, secret, "stripe", logger))
	app.Post("/webhooks/:gateway", Webhook(svc, registry, secret, "", logger))
}

// Deposit starts a deposit. The response is always pending: the balance is
// credited when the gateway confirms.
func Deposit(svc *ledger.Service, claim string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.UserID(c, claim)
		if err != nil {
			return apiutil.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		input, err := apiutil.BindAndValidate[DepositRequest](c)
		if input == nil {
			return err // error response already written
		}
		res, err := svc.Deposit(c.UserContext(), ledger.DepositCommand{
			UserID:      userID,
			Amount:      input.Amount,
			Gateway:     input.Method,
			Country:     input.Country,
			Source:      input.Source,
			Description: input.Description,
			Metadata:    apiutil.RequestMetadata(c),
		})
		if err != nil {
			logger.Info("deposit rejected", "user_id", userID, "method", input.Method, "error", err)
			return apiutil.ProblemDetailsJSON(c, "Deposit failed", err)
		}
		return apiutil.SuccessResponseJSON(c, fiber.StatusAccepted, "Deposit pending", mapper.ToPaymentRead(res))
	}
}

// Withdraw pays out to an external destination.
func Withdraw(svc *ledger.Service, claim string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.UserID(c, claim)
		if err != nil {
			return apiutil.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		input, err := apiutil.BindAndValidate[WithdrawRequest](c)
		if input == nil {
			return err // error response already written
		}
		res, err := svc.Withdraw(c.UserContext(), ledger.WithdrawCommand{
			UserID:      userID,
			Amount:      input.Amount,
			Gateway:     input.Method,
			Country:     input.Country,
			Destination: input.Destination,
			Description: input.Description,
			Metadata:    apiutil.RequestMetadata(c),
		})
		return payoutResponse(c, "Withdrawal", res, err, logger)
	}
}

// TopUp buys airtime.
func TopUp(svc *ledger.Service, claim string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.UserID(c, claim)
		if err != nil {
			return apiutil.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		input, err := apiutil.BindAndValidate[TopUpRequest](c)
		if input == nil {
			return err // error response already written
		}
		res, err := svc.TopUp(c.UserContext(), ledger.TopUpCommand{
			UserID:      userID,
			Amount:      input.Amount,
			Gateway:     input.Method,
			Country:     input.Country,
			Phone:       input.Phone,
			Description: input.Description,
			Metadata:    apiutil.RequestMetadata(c),
		})
		return payoutResponse(c, "Top-up", res, err, logger)
	}
}

// payoutResponse answers an outflow with a definitive status. A gateway
// failure still carries the failed, fully reversed transaction.
func payoutResponse(c *fiber.Ctx, op string, res *ledger.Result, err error, logger *slog.Logger) error {
	if err != nil {
		logger.Info(op+" failed", "error", err)
		if res != nil && res.Transaction != nil {
			return apiutil.ProblemDetailsJSON(c, op+" failed", err, mapper.ToPaymentRead(res))
		}
		return apiutil.ProblemDetailsJSON(c, op+" failed", err)
	}
	if res.Transaction.Status == transaction.StatusCompleted {
		return apiutil.SuccessResponseJSON(c, fiber.StatusOK, op+" completed", mapper.ToPaymentRead(res))
	}
	return apiutil.SuccessResponseJSON(c, fiber.StatusAccepted, op+" pending", mapper.ToPaymentRead(res))
}
