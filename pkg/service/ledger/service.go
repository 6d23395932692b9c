// Package ledger is the transaction orchestrator. It is the only code that
// moves balances: every operation validates, quotes fees, mutates the ledger
// inside one unit of work and talks to payment gateways outside of it.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/account"
	"github.com/amirasaad/usdledger/pkg/domain/events"
	"github.com/amirasaad/usdledger/pkg/domain/fee"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/eventbus"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/provider/identity"
	"github.com/amirasaad/usdledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer fee modes.
const (
	// FeeModeSenderAndRecipient debits the sender Amount+Fee and credits the
	// recipient Amount-Fee.
	FeeModeSenderAndRecipient = config.TransferFeeSenderAndRecipient
	// FeeModeSenderOnly debits the sender Amount+Fee and credits the recipient Amount.
	FeeModeSenderOnly = config.TransferFeeSenderOnly
)

// Quoter computes fee quotes.
type Quoter interface {
	Compute(ctx context.Context, t transaction.Type, amount decimal.Decimal) (fee.Quote, error)
}

// Config holds the orchestrator settings.
type Config struct {
	CommissionAccount string
	CustodyAccount    string
	TransferFeeMode   string
	// PendingMinAge is how long a gateway_pending row waits before PollPending asks the gateway.
	PendingMinAge time.Duration
	PollBatch     int
	// ReservedStaleAfter is the age at which a reserved row is reported as stuck.
	ReservedStaleAfter time.Duration
}

// ConfigFrom maps the application configuration.
func ConfigFrom(l *config.Ledger, p *config.Poller) Config {
	return Config{
		CommissionAccount:  l.CommissionAccount,
		CustodyAccount:     l.CustodyAccount,
		TransferFeeMode:    l.TransferFeeMode,
		PendingMinAge:      p.MinAge,
		PollBatch:          p.Batch,
		ReservedStaleAfter: p.ReservedStaleAfter,
	}
}

func (c Config) withDefaults() Config {
	if c.CommissionAccount == "" {
		c.CommissionAccount = account.CommissionAccount
	}
	if c.CustodyAccount == "" {
		c.CustodyAccount = account.CustodyAccount
	}
	if c.TransferFeeMode == "" {
		c.TransferFeeMode = FeeModeSenderAndRecipient
	}
	if c.PollBatch <= 0 {
		c.PollBatch = 50
	}
	if c.ReservedStaleAfter <= 0 {
		c.ReservedStaleAfter = 15 * time.Minute
	}
	return c
}

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Uow      repository.UnitOfWork
	Fees     Quoter
	Gateways *gateway.Registry
	Verifier identity.Verifier
	Bus      eventbus.Bus
	Logger   *slog.Logger
}

// Service is the transaction orchestrator.
type Service struct {
	uow      repository.UnitOfWork
	fees     Quoter
	gateways *gateway.Registry
	verifier identity.Verifier
	bus      eventbus.Bus
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func New(deps Deps, cfg Config) *Service {
	s := &Service{
		uow:      deps.Uow,
		fees:     deps.Fees,
		gateways: deps.Gateways,
		verifier: deps.Verifier,
		bus:      deps.Bus,
		cfg:      cfg.withDefaults(),
		logger:   deps.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.verifier == nil {
		s.verifier = identity.AllowAll{}
	}
	if s.bus == nil {
		s.bus = eventbus.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Bootstrap creates the platform accounts when missing.
func (s *Service) Bootstrap(ctx context.Context) error {
	return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		accounts, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		for _, name := range []string{s.cfg.CommissionAccount, s.cfg.CustodyAccount} {
			if _, err := accounts.EnsurePlatform(ctx, name); err != nil {
				return fmt.Errorf("ensure platform account %s: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Service) userAccount(ctx context.Context, userID uuid.UUID) (*account.Account, error) {
	accounts, err := s.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	acc, err := accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("account of user %s: %w", userID, err)
	}
	return acc, nil
}

func (s *Service) requireVerified(ctx context.Context, userID uuid.UUID) error {
	ok, err := s.verifier.IsVerified(ctx, userID)
	if err != nil {
		return fmt.Errorf("verify user %s: %w", userID, err)
	}
	if !ok {
		return domain.ErrNotVerified
	}
	return nil
}

// resolveGateway returns the named gateway once it is known to serve country.
func (s *Service) resolveGateway(name, country string) (gateway.Gateway, error) {
	g, err := s.gateways.Get(name)
	if err != nil {
		return nil, err
	}
	if !g.SupportsCountry(country) {
		return nil, fmt.Errorf("%w: %s does not serve %q", domain.ErrUnsupportedCountry, name, country)
	}
	return g, nil
}

// platformIDs returns the commission and custody account ids.
func (s *Service) platformIDs(ctx context.Context, accounts repository.AccountRepository) (commission, custody uuid.UUID, err error) {
	c, err := accounts.EnsurePlatform(ctx, s.cfg.CommissionAccount)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	k, err := accounts.EnsurePlatform(ctx, s.cfg.CustodyAccount)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return c.ID, k.ID, nil
}

// emit publishes transaction.finalized. Failures are logged only: the
// transaction is already committed.
func (s *Service) emit(ctx context.Context, txs ...*transaction.Transaction) {
	for _, tx := range txs {
		if tx == nil || !tx.Status.IsTerminal() {
			continue
		}
		if err := s.bus.Emit(ctx, events.NewTransactionFinalized(tx)); err != nil {
			s.logger.Warn("emit transaction.finalized failed", "transaction_id", tx.ID, "error", err)
		}
	}
}
