package account_test

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/amirasaad/usdledger/pkg/dto"
	"github.com/amirasaad/usdledger/pkg/middleware"
	"github.com/amirasaad/usdledger/webapi/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func TestOpenAccount(t *testing.T) {
	s := testutils.NewServer(t)
	userID := uuid.New()
	token := testutils.NewToken(userID)

	var first, second dto.AccountRead
	resp := s.Request(fiber.MethodPost, "/accounts", "", token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	testutils.Decode(t, resp, &first)
	assert.Equal(t, userID, first.UserID)
	assert.Equal(t, "0.00", first.Balance)
	assert.Equal(t, "USD", first.Currency)

	resp = s.Request(fiber.MethodPost, "/accounts", "", token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	testutils.Decode(t, resp, &second)
	assert.Equal(t, first.ID, second.ID, "opening twice returns the same account")
}

func TestRoutesRequireToken(t *testing.T) {
	s := testutils.NewServer(t)
	for _, r := range []struct{ method, path string }{
		{fiber.MethodPost, "/accounts"},
		{fiber.MethodGet, "/accounts/me/balance"},
		{fiber.MethodGet, "/accounts/me/transactions"},
		{fiber.MethodPost, "/transfers"},
	} {
		resp := s.Request(r.method, r.path, "", "")
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, r.path)
		resp = s.Request(r.method, r.path, "", "not-a-jwt")
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, r.path)
	}
}

func TestGetBalance(t *testing.T) {
	s := testutils.NewServer(t)
	userID, token := s.User(t)
	s.Fund(t, userID, "100")

	var bal dto.BalanceRead
	resp := s.Request(fiber.MethodGet, "/accounts/me/balance", "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	testutils.Decode(t, resp, &bal)
	assert.Equal(t, "100.00", bal.Balance)

	resp = s.Request(fiber.MethodGet, "/accounts/me/balance", "", testutils.NewToken(uuid.New()))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetTransactions(t *testing.T) {
	s := testutils.NewServer(t)
	userID, token := s.User(t)
	for range 3 {
		s.Fund(t, userID, "10")
	}

	var rows []dto.TransactionRead
	resp := s.Request(fiber.MethodGet, "/accounts/me/transactions?limit=2", "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	testutils.Decode(t, resp, &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, "deposit", rows[0].Type)
	assert.Equal(t, "completed", rows[0].Status)
	assert.Equal(t, "0.30", rows[0].Fee)

	resp = s.Request(fiber.MethodGet, "/accounts/me/transactions?limit=500&offset=1", "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	testutils.Decode(t, resp, &rows)
	assert.Len(t, rows, 2, "oversized limits are clamped")
}

func TestTransfer(t *testing.T) {
	s := testutils.NewServer(t)
	sender, senderToken := s.User(t)
	recipient, recipientToken := s.User(t)
	s.Fund(t, sender, "100")

	body := fmt.Sprintf(`{"recipient_id":%q,"amount":"50.00","description":"rent"}`, recipient)
	resp := s.Request(fiber.MethodPost, "/transfers", body, senderToken)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var tr dto.TransferRead
	testutils.Decode(t, resp, &tr)
	assert.Equal(t, "-51.00", tr.Debit.Delta)
	assert.Equal(t, "49.00", tr.Credit.Delta)
	require.NotNil(t, tr.Fee)
	assert.Equal(t, "1.00", tr.Fee.Amount)

	var bal dto.BalanceRead
	testutils.Decode(t, s.Request(fiber.MethodGet, "/accounts/me/balance", "", senderToken), &bal)
	assert.Equal(t, "49.00", bal.Balance)
	testutils.Decode(t, s.Request(fiber.MethodGet, "/accounts/me/balance", "", recipientToken), &bal)
	assert.Equal(t, "49.00", bal.Balance)
}

func TestTransfer_Errors(t *testing.T) {
	s := testutils.NewServer(t)
	sender, token := s.User(t)
	recipient, _ := s.User(t)
	s.Fund(t, sender, "10")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed recipient", `{"recipient_id":"nope","amount":"1"}`, fiber.StatusBadRequest},
		{"zero amount", fmt.Sprintf(`{"recipient_id":%q,"amount":"0"}`, recipient), fiber.StatusBadRequest},
		{"self transfer", fmt.Sprintf(`{"recipient_id":%q,"amount":"1"}`, sender), fiber.StatusBadRequest},
		{"unknown recipient", fmt.Sprintf(`{"recipient_id":%q,"amount":"1"}`, uuid.New()), fiber.StatusNotFound},
		{"insufficient funds", fmt.Sprintf(`{"recipient_id":%q,"amount":"10"}`, recipient), fiber.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.Request(fiber.MethodPost, "/transfers", tt.body, token)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, "application/problem+json", resp.Header.Get(fiber.HeaderContentType))
		})
	}

	s.Verifier.Set(sender, false)
	resp := s.Request(fiber.MethodPost, "/transfers", fmt.Sprintf(`{"recipient_id":%q,"amount":"1"}`, recipient), token)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestTransfer_IdempotencyKey(t *testing.T) {
	s := testutils.NewServer(t)
	sender, token := s.User(t)
	recipient, _ := s.User(t)
	s.Fund(t, sender, "100")

	body := fmt.Sprintf(`{"recipient_id":%q,"amount":"10"}`, recipient)
	first := s.Request(fiber.MethodPost, "/transfers", body, token, middleware.IdempotencyKeyHeader, "tr-1")
	second := s.Request(fiber.MethodPost, "/transfers", body, token, middleware.IdempotencyKeyHeader, "tr-1")
	require.Equal(t, fiber.StatusCreated, first.StatusCode)
	require.Equal(t, fiber.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get(middleware.ReplayedHeader))

	var bal dto.BalanceRead
	testutils.Decode(t, s.Request(fiber.MethodGet, "/accounts/me/balance", "", token), &bal)
	assert.Equal(t, "89.00", bal.Balance, "replayed transfer must not debit twice")
}
