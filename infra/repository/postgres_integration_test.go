//go:build integration

package repository_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/amirasaad/usdledger/infra"
	infraeventbus "github.com/amirasaad/usdledger/infra/eventbus"
	"github.com/amirasaad/usdledger/infra/provider/mockgateway"
	infrarepo "github.com/amirasaad/usdledger/infra/repository"
	"github.com/amirasaad/usdledger/internal/migrations"
	"github.com/amirasaad/usdledger/pkg/app"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/provider/identity"
	"github.com/amirasaad/usdledger/pkg/service/ledger"
	"github.com/amirasaad/usdledger/pkg/testutils"
	webtestutils "github.com/amirasaad/usdledger/webapi/testutils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type PostgresSuite struct {
	suite.Suite
	db       *gorm.DB
	app      *app.App
	bank     *mockgateway.Gateway
	verifier *identity.Static
	stop     func()
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	ctx := context.Background()
	pg, dsn, err := testutils.StartPostgres(ctx)
	if err != nil {
		s.T().Skipf("postgres container unavailable: %v", err)
	}
	s.stop = func() { _ = pg.Terminate(ctx) }

	s.db, err = infra.NewDBConnection(&config.DB{
		Url:          dsn,
		MaxOpenConns: 20,
		MaxIdleConns: 20,
		AutoMigrate:  true,
	}, "test")
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.bank = mockgateway.New("bank", mockgateway.WithCountries("US", "GB"))
	s.verifier = identity.NewStatic()
	cfg := webtestutils.Config()
	cfg.Ledger.TransferFee = &config.FeeSchedule{}
	s.app, err = app.New(&app.Deps{
		Uow:      infrarepo.NewUoW(s.db),
		Gateways: gateway.NewRegistry(s.bank),
		Verifier: s.verifier,
		EventBus: infraeventbus.NewWithMemory(logger),
		Logger:   logger,
	}, cfg)
	s.Require().NoError(err)
	s.Require().NoError(s.app.Bootstrap(ctx))
}

func (s *PostgresSuite) TearDownSuite() {
	if s.stop != nil {
		s.stop()
	}
}

func (s *PostgresSuite) fundedUser(amount string) uuid.UUID {
	ctx := context.Background()
	id := uuid.New()
	s.verifier.Set(id, true)
	_, err := s.app.Ledger.OpenAccount(ctx, id)
	s.Require().NoError(err)
	res, err := s.app.Ledger.Deposit(ctx, ledger.DepositCommand{
		UserID: id, Amount: decimal.RequireFromString(amount), Gateway: "bank", Country: "US",
	})
	s.Require().NoError(err)
	_, err = s.app.Ledger.HandleCallback(ctx, gateway.Callback{
		Gateway: "bank", ExternalID: res.Transaction.ExternalRef(), Status: gateway.StateCompleted,
	})
	s.Require().NoError(err)
	return id
}

func (s *PostgresSuite) balance(userID uuid.UUID) decimal.Decimal {
	a, err := s.app.Ledger.Account(context.Background(), userID)
	s.Require().NoError(err)
	return a.Balance
}

func (s *PostgresSuite) TestMigrationsApplied() {
	sqlDB, err := s.db.DB()
	s.Require().NoError(err)
	v, dirty, err := migrations.Version(sqlDB)
	s.Require().NoError(err)
	s.Equal(uint(1), v)
	s.False(dirty)
}

func (s *PostgresSuite) TestBalanceCheckConstraint() {
	id := s.fundedUser("5")
	acc, err := s.app.Ledger.Account(context.Background(), id)
	s.Require().NoError(err)
	err = s.db.Exec("UPDATE accounts SET balance = -1 WHERE id = ?", acc.ID).Error
	s.Error(err, "the schema rejects negative balances")
}

func (s *PostgresSuite) TestOpposingTransfersDoNotDeadlock() {
	ctx := context.Background()
	a := s.fundedUser("100")
	b := s.fundedUser("100")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for range n {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.app.Ledger.Transfer(ctx, ledger.TransferCommand{SenderID: a, RecipientID: b, Amount: decimal.NewFromInt(1)})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := s.app.Ledger.Transfer(ctx, ledger.TransferCommand{SenderID: b, RecipientID: a, Amount: decimal.NewFromInt(1)})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}
	s.Equal("100.00", s.balance(a).StringFixed(2))
	s.Equal("100.00", s.balance(b).StringFixed(2))
}

func (s *PostgresSuite) TestConcurrentWithdrawalsNeverOverdraw() {
	ctx := context.Background()
	id := s.fundedUser("100")

	const n = 10
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.app.Ledger.Withdraw(ctx, ledger.WithdrawCommand{
				UserID: id, Amount: decimal.NewFromInt(20), Gateway: "bank", Country: "US",
				Destination: "GB33BUKB20201555555555",
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// 20 + 2.00 fee each
	s.Equal(int64(4), succeeded.Load())
	s.Equal("12.00", s.balance(id).StringFixed(2))
}
