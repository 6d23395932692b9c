package payment_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/amirasaad/usdledger/pkg/dto"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/webapi/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func balance(t *testing.T, s *testutils.Server, token string) string {
	t.Helper()
	var bal dto.BalanceRead
	testutils.Decode(t, s.Request(fiber.MethodGet, "/accounts/me/balance", "", token), &bal)
	return bal.Balance
}

func TestDeposit_Pending(t *testing.T) {
	s := testutils.NewServer(t)
	_, token := s.User(t)

	resp := s.Request(fiber.MethodPost, "/deposits",
		`{"amount":"100","method":"bank","country":"us","description":"salary"}`, token)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var pr dto.PaymentRead
	testutils.Decode(t, resp, &pr)
	assert.Equal(t, "gateway_pending", pr.Transaction.Status)
	assert.Equal(t, "3.00", pr.Transaction.Fee)
	assert.NotEmpty(t, pr.Transaction.ExternalID)
	assert.Equal(t, "0.00", balance(t, s, token), "nothing is credited before the gateway confirms")

	calls := s.Bank.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "103", calls[0].Amount.String(), "the gateway collects amount plus fee")
}

func TestDeposit_Rejected(t *testing.T) {
	s := testutils.NewServer(t)
	_, token := s.User(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unsupported country", `{"amount":"10","method":"bank","country":"FR"}`, fiber.StatusBadRequest},
		{"unknown method", `{"amount":"10","method":"carrier-pigeon","country":"US"}`, fiber.StatusBadRequest},
		{"negative amount", `{"amount":"-1","method":"bank","country":"US"}`, fiber.StatusBadRequest},
		{"bad country code", `{"amount":"10","method":"bank","country":"USA"}`, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.Request(fiber.MethodPost, "/deposits", tt.body, token)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestWithdraw_PendingThenWebhook(t *testing.T) {
	s := testutils.NewServer(t)
	userID, token := s.User(t)
	s.Fund(t, userID, "100")

	resp := s.Request(fiber.MethodPost, "/withdrawals",
		`{"amount":"50","method":"bank","country":"US","destination":"GB33BUKB20201555555555"}`, token)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	var pr dto.PaymentRead
	testutils.Decode(t, resp, &pr)
	assert.Equal(t, "gateway_pending", pr.Transaction.Status)
	assert.Equal(t, "-52.00", pr.Transaction.Delta)
	assert.Equal(t, "48.00", balance(t, s, token), "funds are reserved up front")

	body := fmt.Sprintf(`{"external_id":%q,"status":"failed","reason":"account closed"}`, pr.Transaction.ExternalID)
	resp = s.Request(fiber.MethodPost, "/webhooks/bank", body, "",
		gateway.SignatureHeader, gateway.Sign(testutils.CallbackSecret, []byte(body)))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var tx dto.TransactionRead
	testutils.Decode(t, resp, &tx)
	assert.Equal(t, "failed", tx.Status)
	assert.Equal(t, "account closed", tx.FailureReason)
	assert.Equal(t, "100.00", balance(t, s, token), "a failed payout releases the reservation")
}

func TestWithdraw_GatewayTimeout(t *testing.T) {
	s := testutils.NewServer(t)
	userID, token := s.User(t)
	s.Fund(t, userID, "100")
	s.Bank.ScriptWithdrawals(gateway.Failure(&gateway.Error{Kind: gateway.ErrTimeout, Detail: "deadline exceeded"}))

	resp := s.Request(fiber.MethodPost, "/withdrawals",
		`{"amount":"20","method":"bank","country":"US","destination":"GB33BUKB20201555555555"}`, token)
	require.Equal(t, fiber.StatusGatewayTimeout, resp.StatusCode)

	pd := testutils.Problem(t, resp)
	raw, err := json.Marshal(pd.Errors)
	require.NoError(t, err)
	var pr dto.PaymentRead
	require.NoError(t, json.Unmarshal(raw, &pr))
	assert.Equal(t, "failed", pr.Transaction.Status)
	assert.Equal(t, "100.00", balance(t, s, token))
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	s := testutils.NewServer(t)
	userID, token := s.User(t)
	s.Fund(t, userID, "10")

	resp := s.Request(fiber.MethodPost, "/withdrawals",
		`{"amount":"9","method":"bank","country":"US","destination":"GB33BUKB20201555555555"}`, token)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Len(t, s.Bank.Calls(), 1, "only the funding deposit reached the gateway")
}

func TestTopUp_CompletesSynchronously(t *testing.T) {
	s := testutils.NewServer(t)
	userID, token := s.User(t)
	s.Fund(t, userID, "30")
	s.Airtime.ScriptWithdrawals(gateway.Success("", map[string]string{"pin": "1234"}))

	resp := s.Request(fiber.MethodPost, "/topups",
		`{"amount":"5","method":"airtime","country":"NG","phone":"+2348031234567"}`, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var pr dto.PaymentRead
	testutils.Decode(t, resp, &pr)
	assert.Equal(t, "completed", pr.Transaction.Status)
	assert.Equal(t, "1234", pr.Instructions["pin"])
	assert.Equal(t, "25.00", balance(t, s, token))

	resp = s.Request(fiber.MethodPost, "/topups",
		`{"amount":"5","method":"airtime","country":"NG","phone":"0803"}`, token)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWebhook_Deposit(t *testing.T) {
	s := testutils.NewServer(t)
	_, token := s.User(t)

	resp := s.Request(fiber.MethodPost, "/deposits", `{"amount":"40","method":"bank","country":"GB"}`, token)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	var pr dto.PaymentRead
	testutils.Decode(t, resp, &pr)

	body := fmt.Sprintf(`{"external_id":%q,"status":"completed"}`, pr.Transaction.ExternalID)
	sig := gateway.Sign(testutils.CallbackSecret, []byte(body))

	t.Run("bad signature", func(t *testing.T) {
		resp := s.Request(fiber.MethodPost, "/webhooks/bank", body, "", gateway.SignatureHeader, "deadbeef")
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("unknown gateway", func(t *testing.T) {
		resp := s.Request(fiber.MethodPost, "/webhooks/nowhere", body, "", gateway.SignatureHeader, sig)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
	t.Run("empty body", func(t *testing.T) {
		resp := s.Request(fiber.MethodPost, "/webhooks/bank", "", "")
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	resp = s.Request(fiber.MethodPost, "/webhooks/bank", body, "", gateway.SignatureHeader, sig)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "40.00", balance(t, s, token))

	// gateways retry deliveries; a repeat must not credit twice
	resp = s.Request(fiber.MethodPost, "/webhooks/bank", body, "", gateway.SignatureHeader, sig)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "40.00", balance(t, s, token))
}
