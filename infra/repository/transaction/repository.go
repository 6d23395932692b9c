package transaction

import (
	"context"
	"time"

	"github.com/amirasaad/usdledger/infra/repository/gormerr"
	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	repo "github.com/amirasaad/usdledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var pendingStatuses = []string{
	string(transaction.StatusReserved),
	string(transaction.StatusGatewayPending),
}

type repository struct {
	db *gorm.DB
}

// New returns a TransactionRepository bound to db, which may be a transaction.
func New(db *gorm.DB) repo.TransactionRepository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, tx *transaction.Transaction) error {
	m := toModel(tx)
	return gormerr.Wrap(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	var m Transaction
	if err := r.db.WithContext(ctx).Take(&m, "id = ?", id).Error; err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	return toDomain(&m), nil
}

func (r *repository) GetByExternalID(ctx context.Context, gateway, externalID string) (*transaction.Transaction, error) {
	var m Transaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&m, "gateway = ? AND external_id = ?", gateway, externalID).Error
	if err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	return toDomain(&m), nil
}

func (r *repository) Transition(
	ctx context.Context,
	id uuid.UUID,
	from, to transaction.Status,
	patch transaction.Patch,
) error {
	if err := transaction.CheckTransition(from, to); err != nil {
		return err
	}
	updates := map[string]any{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	}
	if patch.ExternalID != nil {
		updates["external_id"] = *patch.ExternalID
	}
	if patch.Delta != nil {
		updates["delta"] = *patch.Delta
	}
	if patch.FailureReason != nil {
		updates["failure_reason"] = *patch.FailureReason
	}
	res := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return gormerr.MapToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	var rows []Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	return toDomainSlice(rows), nil
}

func (r *repository) ListByInternalRef(ctx context.Context, ref uuid.UUID) ([]*transaction.Transaction, error) {
	var rows []Transaction
	if err := r.db.WithContext(ctx).Where("internal_ref = ?", ref).Order("created_at").Find(&rows).Error; err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	return toDomainSlice(rows), nil
}

func (r *repository) CountSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("account_id = ? AND created_at >= ?", accountID, since).
		Count(&n).Error
	return n, gormerr.MapToDomain(err)
}

func (r *repository) SumPendingTotals(ctx context.Context, types ...transaction.Type) (decimal.Decimal, error) {
	if len(types) == 0 {
		return decimal.Zero, nil
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("COALESCE(SUM(amount + fee), 0)").
		Where("status IN ? AND type IN ?", pendingStatuses, names).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, gormerr.MapToDomain(err)
	}
	return total, nil
}

func (r *repository) SumWithheldOnCredits(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("COALESCE(SUM(amount - delta), 0)").
		Where("type = ? AND status = ? AND delta > 0", string(transaction.TypeTransfer), string(transaction.StatusCompleted)).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, gormerr.MapToDomain(err)
	}
	return total, nil
}

func (r *repository) ListPending(
	ctx context.Context,
	status transaction.Status,
	olderThan time.Time,
	limit int,
) ([]*transaction.Transaction, error) {
	var rows []Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(status), olderThan).
		Order("updated_at").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	return toDomainSlice(rows), nil
}

func toModel(tx *transaction.Transaction) Transaction {
	return Transaction{
		ID:             tx.ID,
		AccountID:      tx.AccountID,
		UserID:         tx.UserID,
		Type:           string(tx.Type),
		Amount:         tx.Amount,
		Fee:            tx.Fee,
		Delta:          tx.Delta,
		Status:         string(tx.Status),
		Gateway:        tx.Gateway,
		ExternalID:     tx.ExternalID,
		InternalRef:    tx.InternalRef,
		IdempotencyKey: tx.IdempotencyKey,
		Description:    tx.Description,
		Country:        tx.Country,
		IPAddress:      tx.IPAddress,
		Geolocation:    tx.Geolocation,
		FailureReason:  tx.FailureReason,
		CreatedAt:      tx.CreatedAt,
		UpdatedAt:      tx.UpdatedAt,
	}
}

func toDomain(m *Transaction) *transaction.Transaction {
	return &transaction.Transaction{
		ID:             m.ID,
		AccountID:      m.AccountID,
		UserID:         m.UserID,
		Type:           transaction.Type(m.Type),
		Amount:         m.Amount,
		Fee:            m.Fee,
		Delta:          m.Delta,
		Status:         transaction.Status(m.Status),
		Gateway:        m.Gateway,
		ExternalID:     m.ExternalID,
		InternalRef:    m.InternalRef,
		IdempotencyKey: m.IdempotencyKey,
		Description:    m.Description,
		Country:        m.Country,
		IPAddress:      m.IPAddress,
		Geolocation:    m.Geolocation,
		FailureReason:  m.FailureReason,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toDomainSlice(rows []Transaction) []*transaction.Transaction {
	out := make([]*transaction.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, toDomain(&rows[i]))
	}
	return out
}
