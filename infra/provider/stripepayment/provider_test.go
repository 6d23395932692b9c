package stripepayment

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const secret = "whsec_test"

func newProvider() *StripePaymentProvider {
	return New(&config.Stripe{ApiKey: "sk_test_x", SigningSecret: secret, Countries: []string{"US"}},
		gateway.HTTPOptions{Timeout: time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func signed(t *testing.T, payload string) ([]byte, http.Header) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(payload), Secret: secret})
	h := http.Header{}
	h.Set(SignatureHeader, sp.Header)
	return sp.Payload, h
}

func TestParseCallback(t *testing.T) {
	p := newProvider()

	tests := []struct {
		name   string
		event  string
		wantID string
		want   gateway.State
	}{
		{
			name:   "payment intent succeeded",
			event:  `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","status":"succeeded"}}}`,
			wantID: "pi_1",
			want:   gateway.StateCompleted,
		},
		{
			name:   "payment intent failed",
			event:  `{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_2","object":"payment_intent","status":"requires_payment_method","last_payment_error":{"message":"card declined"}}}}`,
			wantID: "pi_2",
			want:   gateway.StateFailed,
		},
		{
			name:   "transfer reversed",
			event:  `{"id":"evt_3","object":"event","type":"transfer.reversed","data":{"object":{"id":"tr_3","object":"transfer","reversed":true}}}`,
			wantID: "tr_3",
			want:   gateway.StateFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, h := signed(t, tt.event)
			cb, err := p.ParseCallback(payload, h)
			require.NoError(t, err)
			require.NotNil(t, cb)
			assert.Equal(t, Name, cb.Gateway)
			assert.Equal(t, tt.wantID, cb.ExternalID)
			assert.Equal(t, tt.want, cb.Status)
		})
	}
}

func TestParseCallback_FailureReason(t *testing.T) {
	payload, h := signed(t, `{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_2","object":"payment_intent","last_payment_error":{"message":"card declined"}}}}`)
	cb, err := newProvider().ParseCallback(payload, h)
	require.NoError(t, err)
	assert.Equal(t, "card declined", cb.Reason)
}

func TestParseCallback_IgnoresOtherEvents(t *testing.T) {
	payload, h := signed(t, `{"id":"evt_4","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)
	cb, err := newProvider().ParseCallback(payload, h)
	require.NoError(t, err)
	assert.Nil(t, cb)
}

func TestParseCallback_RejectsBadSignature(t *testing.T) {
	h := http.Header{}
	h.Set(SignatureHeader, "t=1,v1=deadbeef")
	_, err := newProvider().ParseCallback([]byte(`{}`), h)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want gateway.ErrorKind
	}{
		{"card declined", &stripe.Error{HTTPStatusCode: 402, Type: stripe.ErrorTypeCard, Msg: "declined"}, gateway.ErrValidation},
		{"invalid request", &stripe.Error{HTTPStatusCode: 400, Type: stripe.ErrorTypeInvalidRequest}, gateway.ErrValidation},
		{"api error", &stripe.Error{HTTPStatusCode: 500, Type: stripe.ErrorTypeAPI}, gateway.ErrHTTP},
		{"no response", &stripe.Error{Msg: "connection reset"}, gateway.ErrConnection},
		{"plain error", errors.New("dial tcp: refused"), gateway.ErrConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapError(tt.err).Kind)
		})
	}
}

func TestInitiateWithdrawal_RequiresConnectedAccount(t *testing.T) {
	res := newProvider().InitiateWithdrawal(t.Context(), gateway.WithdrawalRequest{Destination: "bank_1"})
	assert.Equal(t, gateway.ErrValidation, res.Err.Kind)
}
