package alert

import (
	"context"

	"github.com/amirasaad/usdledger/infra/repository/gormerr"
	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/alert"
	repo "github.com/amirasaad/usdledger/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// New returns an AlertRepository bound to db.
func New(db *gorm.DB) repo.AlertRepository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, a *alert.Alert) error {
	m := Alert{
		ID:            a.ID,
		TransactionID: a.TransactionID,
		Flags:         a.Flags,
		Reviewed:      a.Reviewed,
		CreatedAt:     a.CreatedAt,
	}
	return gormerr.Wrap(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *repository) List(ctx context.Context, onlyUnreviewed bool, limit int) ([]*alert.Alert, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if onlyUnreviewed {
		q = q.Where("reviewed = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Alert
	if err := q.Find(&rows).Error; err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	out := make([]*alert.Alert, 0, len(rows))
	for i := range rows {
		out = append(out, &alert.Alert{
			ID:            rows[i].ID,
			TransactionID: rows[i].TransactionID,
			Flags:         rows[i].Flags,
			Reviewed:      rows[i].Reviewed,
			CreatedAt:     rows[i].CreatedAt,
		})
	}
	return out, nil
}

func (r *repository) MarkReviewed(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&Alert{}).Where("id = ?", id).Update("reviewed", true)
	if res.Error != nil {
		return gormerr.MapToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repository) ExistsForTransaction(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Alert{}).Where("transaction_id = ?", transactionID).Count(&n).Error
	return n > 0, gormerr.MapToDomain(err)
}
