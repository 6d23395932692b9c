// Package monitor flags finalized transactions for manual review.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/domain/alert"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/money"
	"github.com/amirasaad/usdledger/pkg/provider/notification"
	"github.com/amirasaad/usdledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Config struct {
	LargeAmount       decimal.Decimal
	Window            time.Duration
	FrequencyLimit    int64
	HighRiskCountries []string
}

// ConfigFrom maps the MONITOR_* settings.
func ConfigFrom(c *config.Monitor) Config {
	if c == nil {
		return Config{}
	}
	return Config{
		LargeAmount:       c.LargeAmount,
		Window:            c.Window,
		FrequencyLimit:    c.FrequencyLimit,
		HighRiskCountries: c.HighRiskCountries,
	}
}

func (c Config) withDefaults() Config {
	if !c.LargeAmount.IsPositive() {
		c.LargeAmount = decimal.NewFromInt(10000)
	}
	if c.Window <= 0 {
		c.Window = 10 * time.Minute
	}
	if c.FrequencyLimit <= 0 {
		c.FrequencyLimit = 5
	}
	return c
}

type Service struct {
	uow      repository.UnitOfWork
	notifier notification.Notifier
	cfg      Config
	highRisk map[string]struct{}
	logger   *slog.Logger
	now      func() time.Time
}

func New(uow repository.UnitOfWork, notifier notification.Notifier, cfg Config, logger *slog.Logger) *Service {
	cfg = cfg.withDefaults()
	highRisk := make(map[string]struct{}, len(cfg.HighRiskCountries))
	for _, c := range cfg.HighRiskCountries {
		if c = strings.TrimSpace(c); c != "" {
			highRisk[strings.ToUpper(c)] = struct{}{}
		}
	}
	return &Service{
		uow:      uow,
		notifier: notifier,
		cfg:      cfg,
		highRisk: highRisk,
		logger:   logger.With("component", "monitor"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate returns the flags raised by tx. The rules are independent; an
// empty result means nothing suspicious.
func (s *Service) Evaluate(ctx context.Context, tx *transaction.Transaction) ([]string, error) {
	var flags []string
	if tx.Amount.GreaterThan(s.cfg.LargeAmount) {
		flags = append(flags, alert.FlagLargeTransaction)
	}

	txs, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	n, err := txs.CountSince(ctx, tx.AccountID, s.now().Add(-s.cfg.Window))
	if err != nil {
		return nil, fmt.Errorf("count recent transactions: %w", err)
	}
	if n > s.cfg.FrequencyLimit {
		flags = append(flags, alert.FlagHighFrequency)
	}

	if s.isHighRisk(tx.Geolocation) || s.isHighRisk(tx.Country) {
		flags = append(flags, alert.FlagHighRiskCountry)
	}
	return flags, nil
}

func (s *Service) isHighRisk(location string) bool {
	_, ok := s.highRisk[strings.ToUpper(strings.TrimSpace(location))]
	return ok
}

// Inspect evaluates tx and, when flagged, stores an alert and notifies
// reviewers. A transaction gets at most one alert; nil means no alert was
// created.
func (s *Service) Inspect(ctx context.Context, tx *transaction.Transaction) (*alert.Alert, error) {
	flags, err := s.Evaluate(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(flags) == 0 {
		return nil, nil
	}

	var created *alert.Alert
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		alerts, err := uow.AlertRepository()
		if err != nil {
			return err
		}
		exists, err := alerts.ExistsForTransaction(ctx, tx.ID)
		if err != nil || exists {
			return err
		}
		created = alert.New(tx.ID, flags)
		return alerts.Create(ctx, created)
	})
	if err != nil {
		return nil, fmt.Errorf("store alert: %w", err)
	}
	if created == nil {
		s.logger.Debug("alert already recorded", "transaction_id", tx.ID)
		return nil, nil
	}

	s.logger.Warn("transaction flagged",
		"transaction_id", tx.ID,
		"account_id", tx.AccountID,
		"flags", flags,
	)
	msg := notification.Message{
		Subject: "Transaction flagged for review",
		Body: fmt.Sprintf("%s of %s USD on account %s: %s",
			tx.Type, money.Format(tx.Amount), tx.AccountID, strings.Join(flags, "; ")),
		Severity: notification.SeverityInfo,
		Metadata: map[string]string{
			"alert_id":       created.ID.String(),
			"transaction_id": tx.ID.String(),
		},
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Error("alert notification failed", "alert_id", created.ID, "error", err)
	}
	return created, nil
}

// Alerts lists recorded alerts, newest first.
func (s *Service) Alerts(ctx context.Context, onlyUnreviewed bool, limit int) ([]*alert.Alert, error) {
	alerts, err := s.uow.AlertRepository()
	if err != nil {
		return nil, err
	}
	return alerts.List(ctx, onlyUnreviewed, limit)
}

// Review marks an alert as handled by an operator.
func (s *Service) Review(ctx context.Context, id uuid.UUID) error {
	alerts, err := s.uow.AlertRepository()
	if err != nil {
		return err
	}
	if err := alerts.MarkReviewed(ctx, id); err != nil {
		return err
	}
	s.logger.Info("alert reviewed", "alert_id", id)
	return nil
}
