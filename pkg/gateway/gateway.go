// Package gateway abstracts the external payment rails the ledger moves
// money through.
//
// Every rail implements Gateway. Calls never return a Go error: the outcome
// is a tagged Result that is Success, Pending or an *Error whose Kind tells
// the caller whether a retry makes sense. Rails with extra capabilities
// (pooled balance, status polling, webhook parsing) implement the optional
// interfaces below; use Capability to discover them through wrappers.
package gateway

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway is one payment rail.
type Gateway interface {
	Name() string
	SupportsCountry(country string) bool
	InitiateDeposit(ctx context.Context, req DepositRequest) Result
	InitiateWithdrawal(ctx context.Context, req WithdrawalRequest) Result
}

// DepositRequest asks the rail to collect Amount from the user.
type DepositRequest struct {
	TransactionID  uuid.UUID
	UserID         uuid.UUID
	Amount         decimal.Decimal
	Country        string
	IdempotencyKey string
	Description    string
	// Source is rail specific: a payment method, wallet or bank reference.
	Source string
}

// WithdrawalRequest asks the rail to pay Amount out to Destination. Top-ups
// use it too, with the phone number as Destination.
type WithdrawalRequest struct {
	TransactionID  uuid.UUID
	UserID         uuid.UUID
	Amount         decimal.Decimal
	Country        string
	IdempotencyKey string
	Description    string
	Destination    string
}

// ResultKind tags a Result.
type ResultKind int

const (
	KindError ResultKind = iota
	KindSuccess
	KindPending
)

func (k ResultKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindPending:
		return "pending"
	default:
		return "error"
	}
}

// Result is the outcome of a gateway call. ExternalID and MoreInfo are set
// for Success and Pending; Err is set for Error.
type Result struct {
	Kind       ResultKind
	ExternalID string
	MoreInfo   map[string]string
	Err        *Error
}

func Success(externalID string, info map[string]string) Result {
	return Result{Kind: KindSuccess, ExternalID: externalID, MoreInfo: info}
}

func Pending(externalID string, info map[string]string) Result {
	return Result{Kind: KindPending, ExternalID: externalID, MoreInfo: info}
}

func Failure(err *Error) Result {
	return Result{Kind: KindError, Err: err}
}

// OK reports whether the rail accepted the request.
func (r Result) OK() bool {
	return r.Kind == KindSuccess || r.Kind == KindPending
}

// Cause is the failure of a result that is not OK. A failed result without an
// Err, such as the zero Result, reports ErrUnknown.
func (r Result) Cause() *Error {
	if r.OK() {
		return nil
	}
	if r.Err == nil {
		return &Error{Kind: ErrUnknown, Detail: "gateway returned no outcome"}
	}
	return r.Err
}

// BalanceSource reports the funds the platform holds on the rail.
type BalanceSource interface {
	PooledBalance(ctx context.Context) (decimal.Decimal, error)
}

// StatusChecker looks up the current state of a request on the rail.
type StatusChecker interface {
	CheckStatus(ctx context.Context, externalID string) (Status, error)
}

// CallbackParser authenticates and decodes a rail's own webhook format.
type CallbackParser interface {
	ParseCallback(payload []byte, header http.Header) (*Callback, error)
}

// SyncSettler is implemented by rails whose Success result is final.
type SyncSettler interface {
	SettlesOnSuccess() bool
}

// Unwrapper is implemented by gateway decorators.
type Unwrapper interface {
	Unwrap() Gateway
}

// Capability returns g, or the first gateway it wraps, as T.
func Capability[T any](g Gateway) (T, bool) {
	for g != nil {
		if c, ok := g.(T); ok {
			return c, true
		}
		u, ok := g.(Unwrapper)
		if !ok {
			break
		}
		g = u.Unwrap()
	}
	var zero T
	return zero, false
}

// SettlesOnSuccess reports whether a Success from g is final.
func SettlesOnSuccess(g Gateway) bool {
	s, ok := Capability[SyncSettler](g)
	return ok && s.SettlesOnSuccess()
}

// SupportsCountry is a case-insensitive lookup helper for rails.
func SupportsCountry(countries []string, country string) bool {
	return slices.ContainsFunc(countries, func(c string) bool {
		return strings.EqualFold(c, country)
	})
}
