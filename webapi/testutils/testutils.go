// Package testutils builds a fully wired API over sqlite and scripted
// gateways for handler tests.
package testutils

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	infracache "github.com/amirasaad/usdledger/infra/cache"
	infraeventbus "github.com/amirasaad/usdledger/infra/eventbus"
	"github.com/amirasaad/usdledger/infra/provider/mockgateway"
	"github.com/amirasaad/usdledger/pkg/apiutil"
	"github.com/amirasaad/usdledger/pkg/app"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/provider/identity"
	"github.com/amirasaad/usdledger/pkg/provider/notification"
	"github.com/amirasaad/usdledger/pkg/service/ledger"
	"github.com/amirasaad/usdledger/pkg/testutils"
	"github.com/amirasaad/usdledger/webapi"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	JwtSecret      = "webapi-test-secret"
	CallbackSecret = "webhook-test-secret"
)

// Server is an API instance with inspectable collaborators.
type Server struct {
	App      *fiber.App
	Ledger   *app.App
	Bank     *mockgateway.Gateway
	Airtime  *mockgateway.Gateway
	Verifier *identity.Static
	Notifier *notification.Recorder
	Bus      *infraeventbus.MemoryEventBus
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Config returns an application config with test fee schedules: deposit 3%,
// withdrawal 2.00 flat, transfer 1.00 flat and free top-ups.
func Config() *config.App {
	return &config.App{
		Env:         "test",
		Log:         &config.Log{},
		Auth:        &config.Auth{Jwt: &config.Jwt{Secret: JwtSecret, UserClaim: "sub"}},
		RateLimit:   &config.RateLimit{MaxRequests: 10000, Window: time.Minute},
		Idempotency: &config.Idempotency{TTL: time.Hour},
		Gateways:    &config.Gateways{CallbackSecret: CallbackSecret},
		Ledger: &config.Ledger{
			CommissionAccount: "commission",
			CustodyAccount:    "custody",
			TransferFeeMode:   config.TransferFeeSenderAndRecipient,
			DepositFee:        &config.FeeSchedule{Percentage: dec("3")},
			WithdrawalFee:     &config.FeeSchedule{Flat: dec("2")},
			TransferFee:       &config.FeeSchedule{Flat: dec("1")},
			TopUpFee:          &config.FeeSchedule{},
		},
		Reconciliation: &config.Reconciliation{Tolerance: dec("0.01"), Sources: []string{"bank"}},
		Monitor:        &config.Monitor{LargeAmount: dec("10000"), Window: 10 * time.Minute, FrequencyLimit: 5},
		Poller:         &config.Poller{MinAge: time.Minute, Batch: 50, ReservedStaleAfter: 15 * time.Minute},
	}
}

// NewServer wires the API over a fresh sqlite database.
func NewServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, uow := testutils.NewUoW(t)

	store := infracache.NewMemoryCache(time.Minute)
	t.Cleanup(store.Close)

	s := &Server{
		Bank:     mockgateway.New("bank", mockgateway.WithCountries("US", "GB")),
		Airtime:  mockgateway.New("airtime", mockgateway.WithSyncSettlement()),
		Verifier: identity.NewStatic(),
		Notifier: &notification.Recorder{},
		Bus:      infraeventbus.NewWithMemory(logger),
	}
	a, err := app.New(&app.Deps{
		Uow:      uow,
		Gateways: gateway.NewRegistry(s.Bank, s.Airtime),
		Verifier: s.Verifier,
		Notifier: s.Notifier,
		EventBus: s.Bus,
		Cache:    store,
		Logger:   logger,
	}, Config())
	require.NoError(t, err)
	require.NoError(t, a.Bootstrap(context.Background()))
	s.Ledger = a
	s.App = webapi.SetupApp(a)
	return s
}

// User returns a token for a new verified user with an open account.
func (s *Server) User(t *testing.T) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	s.Verifier.Set(id, true)
	_, err := s.Ledger.Ledger.OpenAccount(context.Background(), id)
	require.NoError(t, err)
	return id, testutils.SignToken(JwtSecret, id)
}

// Fund deposits amount for userID through the bank mock and confirms it.
func (s *Server) Fund(t *testing.T, userID uuid.UUID, amount string) {
	t.Helper()
	ctx := context.Background()
	res, err := s.Ledger.Ledger.Deposit(ctx, ledger.DepositCommand{
		UserID:  userID,
		Amount:  dec(amount),
		Gateway: "bank",
		Country: "US",
	})
	require.NoError(t, err)
	_, err = s.Ledger.Ledger.HandleCallback(ctx, gateway.Callback{
		Gateway:    "bank",
		ExternalID: res.Transaction.ExternalRef(),
		Status:     gateway.StateCompleted,
	})
	require.NoError(t, err)
}

// Request runs a request against the API.
func (s *Server) Request(method, path, body, token string, headers ...string) *http.Response {
	return testutils.MakeRequest(s.App, method, path, body, token, headers...)
}

// Decode reads a success envelope, unmarshalling its data into out.
func Decode(t *testing.T, resp *http.Response, out any) apiutil.Response {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env struct {
		apiutil.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env.Response
}

// Problem reads a problem details body.
func Problem(t *testing.T, resp *http.Response) apiutil.ProblemDetails {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	var pd apiutil.ProblemDetails
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pd))
	return pd
}

// NewToken signs a token for userID without creating anything.
func NewToken(userID uuid.UUID) string {
	return testutils.SignToken(JwtSecret, userID)
}
