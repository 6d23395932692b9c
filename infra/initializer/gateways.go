package initializer

import (
	"fmt"
	"log/slog"

	"github.com/amirasaad/usdledger/infra/provider/circle"
	"github.com/amirasaad/usdledger/infra/provider/mockgateway"
	"github.com/amirasaad/usdledger/infra/provider/reloadly"
	"github.com/amirasaad/usdledger/infra/provider/stellar"
	"github.com/amirasaad/usdledger/infra/provider/stripepayment"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/gateway"
)

// newGateways registers every rail whose credentials are configured, each
// behind the retry decorator. The mock rail is only for local development.
func newGateways(cfg *config.Gateways, logger *slog.Logger) (*gateway.Registry, error) {
	if cfg == nil {
		cfg = &config.Gateways{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > config.MaxGatewayTimeout {
		timeout = config.MaxGatewayTimeout
	}
	opts := gateway.HTTPOptions{
		Timeout:           timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}
	policy := gateway.RetryPolicy{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Jitter:      0.1,
	}

	var rails []gateway.Gateway
	if cfg.Circle != nil && cfg.Circle.ApiKey != "" {
		rails = append(rails, circle.New(cfg.Circle, opts, logger))
	}
	if cfg.Stellar != nil && cfg.Stellar.Account != "" {
		rails = append(rails, stellar.New(cfg.Stellar, opts, logger))
	}
	if cfg.Stripe != nil && cfg.Stripe.ApiKey != "" {
		rails = append(rails, stripepayment.New(cfg.Stripe, opts, logger))
	}
	if cfg.Reloadly != nil && cfg.Reloadly.Token != "" {
		rails = append(rails, reloadly.New(cfg.Reloadly, opts, logger))
	}
	if cfg.Mock != nil && cfg.Mock.Enabled {
		logger.Warn("mock gateway enabled; do not use in production")
		rails = append(rails, mockgateway.New("mock"))
	}
	if len(rails) == 0 {
		return nil, fmt.Errorf("no gateway configured")
	}

	wrapped := make([]gateway.Gateway, 0, len(rails))
	for _, g := range rails {
		logger.Info("gateway registered", "gateway", g.Name())
		wrapped = append(wrapped, gateway.WithRetry(g, policy, logger))
	}
	return gateway.NewRegistry(wrapped...), nil
}
