package ledger

import (
	"context"
	"strings"

	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/repository"
)

// Deposit asks the gateway to collect the amount plus fee from the user. The
// balance is only credited once the gateway reports completion through
// HandleCallback or PollPending. A gateway error is returned as *gateway.Error
// and nothing is persisted.
func (s *Service) Deposit(ctx context.Context, cmd DepositCommand) (*Result, error) {
	cmd.Country = strings.ToUpper(cmd.Country)
	if err := validateMoneyRequest(cmd.UserID, cmd.Amount, cmd.Gateway, cmd.Country); err != nil {
		return nil, err
	}
	logger := s.logger.With("op", "deposit", "user_id", cmd.UserID, "gateway", cmd.Gateway)

	m := transaction.NewMachine()
	if err := m.To(transaction.StatusValidating); err != nil {
		return nil, err
	}
	acc, err := s.userAccount(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	g, err := s.resolveGateway(cmd.Gateway, cmd.Country)
	if err != nil {
		return nil, err
	}
	quote, err := s.fees.Compute(ctx, transaction.TypeDeposit, cmd.Amount)
	if err != nil {
		return nil, err
	}

	id := transaction.NewID()
	res := g.InitiateDeposit(ctx, gateway.DepositRequest{
		TransactionID:  id,
		UserID:         cmd.UserID,
		Amount:         quote.Total,
		Country:        cmd.Country,
		IdempotencyKey: id.String(),
		Description:    cmd.Description,
		Source:         cmd.Source,
	})
	if !res.OK() {
		cause := res.Cause()
		logger.Warn("gateway rejected deposit", "transaction_id", id, "error", cause)
		return nil, cause
	}
	if err := m.To(transaction.StatusGatewayPending); err != nil {
		return nil, err
	}

	userID := cmd.UserID
	externalID := res.ExternalID
	now := s.now()
	tx := &transaction.Transaction{
		ID:             id,
		AccountID:      acc.ID,
		UserID:         &userID,
		Type:           transaction.TypeDeposit,
		Amount:         quote.Amount,
		Fee:            quote.Fee,
		Status:         m.Current(),
		Gateway:        g.Name(),
		ExternalID:     &externalID,
		IdempotencyKey: id.String(),
		Description:    cmd.Description,
		Country:        cmd.Country,
		IPAddress:      cmd.IPAddress,
		Geolocation:    cmd.Geolocation,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		txs, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		return txs.Create(ctx, tx)
	})
	if err != nil {
		// The rail accepted the request; reconciliation will surface the orphan.
		logger.Error("persist accepted deposit failed", "transaction_id", id, "external_id", externalID, "error", err)
		return nil, err
	}
	logger.Info("deposit pending at gateway", "transaction_id", id, "external_id", externalID, "total", quote.Total)
	return &Result{Transaction: tx, Instructions: res.MoreInfo}, nil
}
