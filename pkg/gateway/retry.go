package gateway

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds WithRetry.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the +/- fraction applied to each delay.
	Jitter float64
}

// DefaultRetryPolicy retries three times starting at 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second, Jitter: 0.1}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = 0.1
	}
	return p
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}

type retrying struct {
	Gateway
	policy RetryPolicy
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry retries Timeout and Connection failures of g with exponential
// backoff. The request, and so its idempotency key, is identical on every
// attempt.
func WithRetry(g Gateway, policy RetryPolicy, logger *slog.Logger) Gateway {
	return &retrying{Gateway: g, policy: policy.normalized(), logger: logger, sleep: sleepCtx}
}

func (r *retrying) Unwrap() Gateway { return r.Gateway }

func (r *retrying) InitiateDeposit(ctx context.Context, req DepositRequest) Result {
	return r.do(ctx, "deposit", req.IdempotencyKey, func() Result {
		return r.Gateway.InitiateDeposit(ctx, req)
	})
}

func (r *retrying) InitiateWithdrawal(ctx context.Context, req WithdrawalRequest) Result {
	return r.do(ctx, "withdrawal", req.IdempotencyKey, func() Result {
		return r.Gateway.InitiateWithdrawal(ctx, req)
	})
}

func (r *retrying) do(ctx context.Context, op, key string, call func() Result) Result {
	logger := r.logger.With("gateway", r.Name(), "op", op, "idempotency_key", key)
	var res Result
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		res = call()
		if res.OK() || !res.Cause().Retryable() {
			if attempt > 1 && res.OK() {
				logger.Info("gateway call succeeded after retry", "attempt", attempt)
			}
			return res
		}
		if attempt == r.policy.MaxAttempts {
			logger.Error("gateway call failed, attempts exhausted", "attempts", attempt, "error", res.Cause())
			break
		}
		wait := r.policy.delay(attempt)
		logger.Warn("gateway call failed, retrying", "attempt", attempt, "delay", wait, "error", res.Cause())
		if err := r.sleep(ctx, wait); err != nil {
			return Failure(Classify(r.Name(), err))
		}
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
