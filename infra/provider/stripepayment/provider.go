// Package stripepayment is the card rail. Deposits are PaymentIntents,
// withdrawals are Transfers to the user's connected account, and final
// states arrive as signed Stripe webhooks.
package stripepayment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"golang.org/x/time/rate"
)

const Name = "stripe"

// SignatureHeader is the header Stripe signs webhooks with.
const SignatureHeader = "Stripe-Signature"

// StripePaymentProvider implements gateway.Gateway using the Stripe API.
type StripePaymentProvider struct {
	client    *stripe.Client
	cfg       *config.Stripe
	countries []string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New creates the Stripe rail. opts supplies the timeout and the outbound
// rate; cfg.BaseURL points the client at a stub API in tests.
func New(cfg *config.Stripe, opts gateway.HTTPOptions, logger *slog.Logger) *StripePaymentProvider {
	httpClient := &http.Client{Timeout: opts.Timeout}
	backendCfg := &stripe.BackendConfig{HTTPClient: httpClient}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	client := stripe.NewClient(cfg.ApiKey, stripe.WithBackends(stripe.NewBackendsWithConfig(backendCfg)))

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &StripePaymentProvider{
		client:    client,
		cfg:       cfg,
		countries: cfg.Countries,
		limiter:   rate.NewLimiter(limit, max(opts.Burst, 1)),
		logger:    logger.With("gateway", Name),
	}
}

func (s *StripePaymentProvider) Name() string { return Name }

func (s *StripePaymentProvider) SupportsCountry(country string) bool {
	return gateway.SupportsCountry(s.countries, country)
}

// InitiateDeposit creates a PaymentIntent for the total charged. When the
// request carries a payment method it is confirmed immediately.
func (s *StripePaymentProvider) InitiateDeposit(ctx context.Context, req gateway.DepositRequest) gateway.Result {
	if err := s.limiter.Wait(ctx); err != nil {
		return gateway.Failure(gateway.Classify(Name, err))
	}
	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(money.ToMinorUnits(req.Amount)),
		Currency:    stripe.String(strings.ToLower(money.Currency)),
		Description: stripe.String(req.Description),
	}
	if req.Source != "" {
		params.PaymentMethod = stripe.String(req.Source)
		params.Confirm = stripe.Bool(true)
	}
	params.AddMetadata("transaction_id", req.TransactionID.String())
	params.AddMetadata("user_id", req.UserID.String())
	params.SetIdempotencyKey(req.IdempotencyKey)

	pi, err := s.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		s.logger.Error("failed to create payment intent", "transaction_id", req.TransactionID, "error", err)
		return gateway.Failure(mapError(err))
	}
	info := map[string]string{"client_secret": pi.ClientSecret, "status": string(pi.Status)}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return gateway.Success(pi.ID, info)
	case stripe.PaymentIntentStatusCanceled:
		return gateway.Failure(gateway.NewError(Name, gateway.ErrValidation, "payment intent canceled"))
	default:
		return gateway.Pending(pi.ID, info)
	}
}

// InitiateWithdrawal transfers Amount to the connected account in Destination.
func (s *StripePaymentProvider) InitiateWithdrawal(ctx context.Context, req gateway.WithdrawalRequest) gateway.Result {
	if !strings.HasPrefix(req.Destination, "acct_") {
		return gateway.Failure(gateway.NewError(Name, gateway.ErrValidation, "destination must be a connected account id"))
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return gateway.Failure(gateway.Classify(Name, err))
	}
	params := &stripe.TransferCreateParams{
		Amount:      stripe.Int64(money.ToMinorUnits(req.Amount)),
		Currency:    stripe.String(strings.ToLower(money.Currency)),
		Destination: stripe.String(req.Destination),
		Description: stripe.String(req.Description),
	}
	params.AddMetadata("transaction_id", req.TransactionID.String())
	params.AddMetadata("user_id", req.UserID.String())
	params.SetIdempotencyKey(req.IdempotencyKey)

	tr, err := s.client.V1Transfers.Create(ctx, params)
	if err != nil {
		s.logger.Error("failed to create transfer", "transaction_id", req.TransactionID, "error", err)
		return gateway.Failure(mapError(err))
	}
	if tr.Reversed {
		return gateway.Failure(gateway.NewError(Name, gateway.ErrValidation, "transfer reversed"))
	}
	return gateway.Pending(tr.ID, nil)
}

// CheckStatus resolves PaymentIntents (pi_) and Transfers (tr_).
func (s *StripePaymentProvider) CheckStatus(ctx context.Context, externalID string) (gateway.Status, error) {
	switch {
	case strings.HasPrefix(externalID, "pi_"):
		pi, err := s.client.V1PaymentIntents.Retrieve(ctx, externalID, nil)
		if err != nil {
			return gateway.Status{}, mapError(err)
		}
		return intentStatus(pi), nil
	case strings.HasPrefix(externalID, "tr_"):
		tr, err := s.client.V1Transfers.Retrieve(ctx, externalID, nil)
		if err != nil {
			return gateway.Status{}, mapError(err)
		}
		if tr.Reversed {
			return gateway.Status{State: gateway.StateFailed, Reason: "transfer reversed"}, nil
		}
		return gateway.Status{State: gateway.StateCompleted}, nil
	default:
		return gateway.Status{}, fmt.Errorf("%w: unknown stripe object %q", domain.ErrValidation, externalID)
	}
}

// PooledBalance is the available USD balance of the platform account.
func (s *StripePaymentProvider) PooledBalance(ctx context.Context) (decimal.Decimal, error) {
	bal, err := s.client.V1Balance.Retrieve(ctx, nil)
	if err != nil {
		return decimal.Zero, mapError(err)
	}
	total := decimal.Zero
	for _, a := range bal.Available {
		if strings.EqualFold(string(a.Currency), money.Currency) {
			total = total.Add(money.FromMinorUnits(a.Amount))
		}
	}
	return total, nil
}

// ParseCallback verifies the Stripe-Signature header and maps the event to a
// final status. Events that do not end a transaction return nil.
func (s *StripePaymentProvider) ParseCallback(payload []byte, header http.Header) (*gateway.Callback, error) {
	if s.cfg.SigningSecret == "" {
		return nil, fmt.Errorf("%w: webhook signing secret not configured", domain.ErrUnauthorized)
	}
	event, err := webhook.ConstructEventWithOptions(
		payload,
		header.Get(SignatureHeader),
		s.cfg.SigningSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	log := s.logger.With("event_id", event.ID, "type", event.Type)
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: payment intent: %v", domain.ErrValidation, err)
		}
		st := intentStatus(&pi)
		if event.Type != stripe.EventTypePaymentIntentSucceeded {
			st = gateway.Status{State: gateway.StateFailed, Reason: failureReason(&pi, string(event.Type))}
		}
		log.Info("stripe payment intent event", "payment_intent", pi.ID, "state", st.State)
		return &gateway.Callback{Gateway: Name, ExternalID: pi.ID, Status: st.State, Reason: st.Reason}, nil
	case stripe.EventTypeTransferReversed:
		var tr stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &tr); err != nil {
			return nil, fmt.Errorf("%w: transfer: %v", domain.ErrValidation, err)
		}
		return &gateway.Callback{Gateway: Name, ExternalID: tr.ID, Status: gateway.StateFailed, Reason: "transfer reversed"}, nil
	case stripe.EventTypeTransferCreated:
		var tr stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &tr); err != nil {
			return nil, fmt.Errorf("%w: transfer: %v", domain.ErrValidation, err)
		}
		return &gateway.Callback{Gateway: Name, ExternalID: tr.ID, Status: gateway.StateCompleted}, nil
	default:
		log.Debug("ignoring stripe event")
		return nil, nil
	}
}

func intentStatus(pi *stripe.PaymentIntent) gateway.Status {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return gateway.Status{State: gateway.StateCompleted}
	case stripe.PaymentIntentStatusCanceled:
		return gateway.Status{State: gateway.StateFailed, Reason: failureReason(pi, "canceled")}
	default:
		return gateway.Status{State: gateway.StatePending}
	}
}

func failureReason(pi *stripe.PaymentIntent, fallback string) string {
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		return pi.LastPaymentError.Msg
	}
	return fallback
}

// mapError converts a stripe-go error into a gateway error.
func mapError(err error) *gateway.Error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.HTTPStatusCode == 0 {
			return gateway.NewError(Name, gateway.ErrConnection, se.Msg)
		}
		detail := se.Msg
		if se.Code != "" {
			detail = string(se.Code) + ": " + se.Msg
		}
		if se.Type == stripe.ErrorTypeCard {
			return &gateway.Error{Kind: gateway.ErrValidation, Gateway: Name, Status: se.HTTPStatusCode, Detail: detail}
		}
		return gateway.FromStatus(Name, se.HTTPStatusCode, detail)
	}
	return gateway.Classify(Name, err)
}

var (
	_ gateway.Gateway        = (*StripePaymentProvider)(nil)
	_ gateway.StatusChecker  = (*StripePaymentProvider)(nil)
	_ gateway.BalanceSource  = (*StripePaymentProvider)(nil)
	_ gateway.CallbackParser = (*StripePaymentProvider)(nil)
)
