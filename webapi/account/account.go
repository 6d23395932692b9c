// Package account serves the account routes: opening an account, reading the
// balance and history, and internal transfers.
package account

import (
	"log/slog"

	"github.com/amirasaad/usdledger/pkg/apiutil"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/dto"
	"github.com/amirasaad/usdledger/pkg/mapper"
	"github.com/amirasaad/usdledger/pkg/middleware"
	"github.com/amirasaad/usdledger/pkg/money"
	"github.com/amirasaad/usdledger/pkg/service/ledger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Routes registers the account routes. Every route requires a bearer token;
// writes go through the Idempotency-Key middleware.
//
// Routes:
//   - POST /accounts                  : open the caller's account (idempotent).
//   - GET  /accounts/me/balance       : current balance.
//   - GET  /accounts/me/transactions  : history, newest first.
//   - POST /transfers                 : internal transfer to another user.
func Routes(
	app *fiber.App,
	svc *ledger.Service,
	cfg *config.App,
	idempotency fiber.Handler,
	logger *slog.Logger,
) {
	auth := middleware.JwtProtected(cfg.Auth.Jwt)
	claim := cfg.Auth.Jwt.UserClaim
	app.Post("/accounts", auth, idempotency, OpenAccount(svc, claim, logger))
	app.Get("/accounts/me/balance", auth, GetBalance(svc, claim, logger))
	app.Get("/accounts/me/transactions", auth, GetTransactions(svc, claim, logger))
	app.Post("/transfers", auth, idempotency, Transfer(svc, claim, logger))
}

// OpenAccount returns the caller's account, creating it on first call.
func OpenAccount(svc *ledger.Service, claim string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.UserID(c, claim)
		if err != nil {
			return apiutil.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		a, err := svc.OpenAccount(c.UserContext(), userID)
		if err != nil {
			logger.Error("open account failed", "user_id", userID, "error", err)
			return apiutil.ProblemDetailsJSON(c, "Failed to open account", err)
		}
		return apiutil.SuccessResponseJSON(c, fiber.StatusCreated, "Account ready", mapper.ToAccountRead(a))
	}
}

// GetBalance returns the caller's balance.
func GetBalance(svc *ledger.Service, claim string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.UserID(c, claim)
		if err != nil {
			return apiutil.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		a, err := svc.Account(c.UserContext(), userID)
		if err != nil {
			logger.Debug("balance lookup failed", "user_id", userID, "error", err)
			return apiutil.ProblemDetailsJSON(c, "Failed to fetch balance", err)
		}
		return apiutil.SuccessResponseJSON(c, fiber.StatusOK, "Balance fetched", dto.BalanceRead{
			AccountID: a.ID,
			Balance:   money.Format(a.Balance),
			Currency:  money.Currency,
		})
	}
}

// GetTransactions pages the caller's history.
func GetTransactions(svc *ledger.Service, claim string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.UserID(c, claim)
		if err != nil {
			return apiutil.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		var q HistoryQuery
		if err := c.QueryParser(&q); err != nil {
			return apiutil.ProblemDetailsJSON(c, "Invalid query", err, fiber.StatusBadRequest)
		}
		txs, err := svc.History(c.UserContext(), userID, q.Limit, q.Offset)
		if err != nil {
			logger.Debug("history lookup failed", "user_id", userID, "error", err)
			return apiutil.ProblemDetailsJSON(c, "Failed to list transactions", err)
		}
		return apiutil.SuccessResponseJSON(c, fiber.StatusOK, "Transactions fetched", mapper.ToTransactionReads(txs))
	}
}

// Transfer moves funds to another user's account.
func Transfer(svc *ledger.Service, claim string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.UserID(c, claim)
		if err != nil {
			return apiutil.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		input, err := apiutil.BindAndValidate[TransferRequest](c)
		if input == nil {
			return err // error response already written
		}
		recipient, _ := uuid.Parse(input.RecipientID)
		res, err := svc.Transfer(c.UserContext(), ledger.TransferCommand{
			SenderID:    userID,
			RecipientID: recipient,
			Amount:      input.Amount,
			Description: input.Description,
			Metadata:    apiutil.RequestMetadata(c),
		})
		if err != nil {
			logger.Info("transfer rejected", "user_id", userID, "error", err)
			return apiutil.ProblemDetailsJSON(c, "Transfer failed", err)
		}
		return apiutil.SuccessResponseJSON(c, fiber.StatusCreated, "Transfer completed", mapper.ToTransferRead(res))
	}
}
