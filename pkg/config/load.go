package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads the first env file found among candidates, searching from the
// working directory upwards, then processes the environment. Variables that
// are already set win over the file. No file at all is not an error.
func Load(candidates ...string) (*App, error) {
	logger := slog.Default()
	if len(candidates) == 0 {
		candidates = []string{".env"}
	}
	for _, name := range candidates {
		path, ok := findUp(name)
		if !ok {
			logger.Debug("env file not found", "name", name)
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		logger.Info("loaded env file", "path", path)
		break
	}
	return loadFromEnv()
}

// findUp returns the nearest file called name in the working directory or
// one of its parents.
func findUp(name string) (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func loadFromEnv() (*App, error) {
	var cfg App
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.Gateways.Timeout <= 0 || cfg.Gateways.Timeout > MaxGatewayTimeout {
		cfg.Gateways.Timeout = MaxGatewayTimeout
	}
	switch cfg.Ledger.TransferFeeMode {
	case TransferFeeSenderAndRecipient, TransferFeeSenderOnly:
	default:
		return nil, fmt.Errorf("invalid LEDGER_TRANSFER_FEE_MODE %q", cfg.Ledger.TransferFeeMode)
	}

	logger := slog.Default()
	logger.Info("App config loaded",
		"env", cfg.Env,
		"rate_limit_max_requests", cfg.RateLimit.MaxRequests,
		"rate_limit_window", cfg.RateLimit.Window,
		"db", maskValue(cfg.DB.Url),
		"event_bus", cfg.EventBus.Driver,
		"gateway_timeout", cfg.Gateways.Timeout,
		"circle_api_key", maskValue(cfg.Gateways.Circle.ApiKey),
		"stripe_api_key", maskValue(cfg.Gateways.Stripe.ApiKey),
		"transfer_fee_mode", cfg.Ledger.TransferFeeMode,
		"reconciliation_schedule", cfg.Reconciliation.Schedule,
		"reconciliation_tolerance", cfg.Reconciliation.Tolerance.String(),
	)
	return &cfg, nil
}

// Transfer fee modes.
const (
	TransferFeeSenderAndRecipient = "sender_and_recipient"
	TransferFeeSenderOnly         = "sender_only"
)

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
