package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// HTTPOptions configures an HTTPClient.
type HTTPOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Headers           map[string]string
	Transport         http.RoundTripper
}

// HTTPClient is the JSON-over-HTTP transport shared by rails. Every call
// waits on a token bucket and runs under a bounded timeout.
type HTTPClient struct {
	name    string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	headers map[string]string
	logger  *slog.Logger
}

func NewHTTPClient(name, baseURL string, opts HTTPOptions, logger *slog.Logger) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &HTTPClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		limiter: rate.NewLimiter(limit, opts.Burst),
		headers: opts.Headers,
		logger:  logger.With("gateway", name),
	}
}

// Do sends in as JSON and decodes a 2xx body into out. A non-empty
// idempotencyKey is sent as Idempotency-Key.
func (c *HTTPClient) Do(ctx context.Context, method, path, idempotencyKey string, in, out any) *Error {
	if err := c.limiter.Wait(ctx); err != nil {
		return Classify(c.name, err)
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return NewError(c.name, ErrValidation, err.Error())
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return NewError(c.name, ErrValidation, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("gateway request failed", "method", method, "path", path, "error", err)
		return Classify(c.name, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug("gateway request", "method", method, "path", path,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return FromStatus(c.name, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(c.name, ErrHTTP, fmt.Sprintf("decode response: %v", err))
	}
	return nil
}
