package fee

import (
	"context"
	"errors"

	"github.com/amirasaad/usdledger/infra/repository/gormerr"
	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/fee"
	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	repo "github.com/amirasaad/usdledger/pkg/repository"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// New returns a FeeRepository bound to db.
func New(db *gorm.DB) repo.FeeRepository {
	return &repository{db: db}
}

func (r *repository) GetActive(ctx context.Context, t transaction.Type) (*fee.Fee, error) {
	var m Fee
	err := r.db.WithContext(ctx).
		Where("type = ? AND active = ?", string(t), true).
		Order("id DESC").
		Take(&m).Error
	if err != nil {
		err = gormerr.MapToDomain(err)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoActiveFeeConfig
		}
		return nil, err
	}
	return toDomain(&m), nil
}

// Upsert deactivates the current schedule of f.Type and inserts f as the
// active one. Callers run it inside a unit of work.
func (r *repository) Upsert(ctx context.Context, f *fee.Fee) error {
	db := r.db.WithContext(ctx)
	err := db.Model(&Fee{}).
		Where("type = ? AND active = ?", string(f.Type), true).
		Update("active", false).Error
	if err != nil {
		return gormerr.MapToDomain(err)
	}
	m := Fee{
		Type:       string(f.Type),
		Flat:       f.Flat,
		Percentage: f.Percentage,
		Active:     true,
	}
	if err := db.Create(&m).Error; err != nil {
		return gormerr.MapToDomain(err)
	}
	f.ID = m.ID
	f.Active = true
	f.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *repository) List(ctx context.Context) ([]*fee.Fee, error) {
	var rows []Fee
	if err := r.db.WithContext(ctx).Order("type, id").Find(&rows).Error; err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	out := make([]*fee.Fee, 0, len(rows))
	for i := range rows {
		out = append(out, toDomain(&rows[i]))
	}
	return out, nil
}

func toDomain(m *Fee) *fee.Fee {
	return &fee.Fee{
		ID:         m.ID,
		Type:       transaction.Type(m.Type),
		Flat:       m.Flat,
		Percentage: m.Percentage,
		Active:     m.Active,
		UpdatedAt:  m.UpdatedAt,
	}
}
