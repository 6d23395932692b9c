package account

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/amirasaad/usdledger/infra/repository/gormerr"
	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/domain/account"
	repo "github.com/amirasaad/usdledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// New returns an AccountRepository bound to db, which may be a transaction.
func New(db *gorm.DB) repo.AccountRepository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, a *account.Account) error {
	m := toModel(a)
	return gormerr.Wrap(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	var m Account
	if err := r.db.WithContext(ctx).Take(&m, "id = ?", id).Error; err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	return toDomain(&m)
}

func (r *repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*account.Account, error) {
	var m Account
	if err := r.db.WithContext(ctx).Take(&m, "user_id = ?", userID).Error; err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	return toDomain(&m)
}

func (r *repository) GetPlatform(ctx context.Context, name string) (*account.Account, error) {
	var m Account
	err := r.db.WithContext(ctx).
		Take(&m, "kind = ? AND name = ?", string(account.KindPlatform), name).Error
	if err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	return toDomain(&m)
}

func (r *repository) EnsurePlatform(ctx context.Context, name string) (*account.Account, error) {
	existing, err := r.GetPlatform(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	a, err := account.NewPlatform(name).Build()
	if err != nil {
		return nil, err
	}
	m := toModel(a)
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m).Error
	if err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	// another process may have won the insert
	return r.GetPlatform(ctx, name)
}

func (r *repository) lockOne(ctx context.Context, id uuid.UUID) (*Account, error) {
	var m Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&m, "id = ?", id).Error
	if err != nil {
		return nil, gormerr.MapToDomain(err)
	}
	return &m, nil
}

func (r *repository) LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]*account.Account, error) {
	ordered := slices.Clone(ids)
	slices.SortFunc(ordered, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	ordered = slices.Compact(ordered)

	out := make([]*account.Account, 0, len(ordered))
	for _, id := range ordered {
		m, err := r.lockOne(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock account %s: %w", id, err)
		}
		a, err := toDomain(m)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *repository) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	if delta.IsZero() {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	m, err := r.lockOne(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	a, err := toDomain(m)
	if err != nil {
		return decimal.Zero, err
	}
	next, err := a.Apply(delta)
	if err != nil {
		return a.Balance, err
	}
	err = r.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"balance": next, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return a.Balance, gormerr.MapToDomain(err)
	}
	return next, nil
}

func (r *repository) SumBalances(ctx context.Context, filter repo.BalanceFilter) (decimal.Decimal, error) {
	q := r.db.WithContext(ctx).Model(&Account{}).Select("COALESCE(SUM(balance), 0)")
	switch {
	case filter.Users && len(filter.Platforms) > 0:
		q = q.Where("kind = ? OR (kind = ? AND name IN ?)",
			string(account.KindUser), string(account.KindPlatform), filter.Platforms)
	case filter.Users:
		q = q.Where("kind = ?", string(account.KindUser))
	case len(filter.Platforms) > 0:
		q = q.Where("kind = ? AND name IN ?", string(account.KindPlatform), filter.Platforms)
	default:
		return decimal.Zero, nil
	}
	var total decimal.Decimal
	if err := q.Row().Scan(&total); err != nil {
		return decimal.Zero, gormerr.MapToDomain(err)
	}
	return total, nil
}

func toModel(a *account.Account) Account {
	m := Account{
		ID:        a.ID,
		Kind:      string(a.Kind),
		UserID:    a.UserID,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Name != "" {
		name := a.Name
		m.Name = &name
	}
	return m
}

func toDomain(m *Account) (*account.Account, error) {
	var b *account.Builder
	if account.Kind(m.Kind) == account.KindPlatform && m.Name != nil {
		b = account.NewPlatform(*m.Name)
	} else {
		b = account.New()
		if m.UserID != nil {
			b = b.WithUserID(*m.UserID)
		}
	}
	return b.WithID(m.ID).
		WithBalance(m.Balance).
		WithCreatedAt(m.CreatedAt).
		WithUpdatedAt(m.UpdatedAt).
		Build()
}
