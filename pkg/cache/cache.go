// Package cache defines the response cache behind the Idempotency-Key
// middleware.
package cache

import (
	"context"
	"time"
)

// Response is a replayable HTTP response.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	// Fingerprint identifies the request that produced the response, so a key
	// reused with a different body can be rejected.
	Fingerprint string `json:"fingerprint"`
}

// ResponseCache stores responses by idempotency key.
type ResponseCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, key string) (*Response, error)
	Set(ctx context.Context, key string, resp *Response, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
