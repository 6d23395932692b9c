package repository

import (
	"context"
	"fmt"
	"reflect"

	accountrepo "github.com/amirasaad/usdledger/infra/repository/account"
	alertrepo "github.com/amirasaad/usdledger/infra/repository/alert"
	feerepo "github.com/amirasaad/usdledger/infra/repository/fee"
	txrepo "github.com/amirasaad/usdledger/infra/repository/transaction"
	"github.com/amirasaad/usdledger/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one abstraction.
// Repositories handed out inside Do share the transaction's session, so every
// row lock they take lives until Do returns.
type UoW struct {
	db           *gorm.DB
	tx           *gorm.DB
	repoRegistry map[reflect.Type]func(*gorm.DB) any
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{
		db: db,
		repoRegistry: map[reflect.Type]func(*gorm.DB) any{
			typeOf[repository.AccountRepository]():     func(db *gorm.DB) any { return accountrepo.New(db) },
			typeOf[repository.TransactionRepository](): func(db *gorm.DB) any { return txrepo.New(db) },
			typeOf[repository.FeeRepository]():         func(db *gorm.DB) any { return feerepo.New(db) },
			typeOf[repository.AlertRepository]():       func(db *gorm.DB) any { return alertrepo.New(db) },
		},
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Do runs fn in a database transaction. Nested calls join the outer transaction.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txnUow := &UoW{db: u.db, tx: tx, repoRegistry: u.repoRegistry}
		return fn(txnUow)
	})
}

// GetRepository returns the repository for repoType bound to the current
// session: the transaction inside Do, the plain connection pool outside it.
func (u *UoW) GetRepository(repoType reflect.Type) (any, error) {
	constructor, ok := u.repoRegistry[repoType]
	if !ok {
		return nil, fmt.Errorf("unsupported repository type: %v", repoType)
	}
	return constructor(u.session()), nil
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UoW) AccountRepository() (repository.AccountRepository, error) {
	return get[repository.AccountRepository](u)
}

func (u *UoW) TransactionRepository() (repository.TransactionRepository, error) {
	return get[repository.TransactionRepository](u)
}

func (u *UoW) FeeRepository() (repository.FeeRepository, error) {
	return get[repository.FeeRepository](u)
}

func (u *UoW) AlertRepository() (repository.AlertRepository, error) {
	return get[repository.AlertRepository](u)
}

func get[T any](u *UoW) (T, error) {
	var zero T
	r, err := u.GetRepository(typeOf[T]())
	if err != nil {
		return zero, err
	}
	typed, ok := r.(T)
	if !ok {
		return zero, fmt.Errorf("repository %T does not implement %v", r, typeOf[T]())
	}
	return typed, nil
}

// Models lists every persisted model, for AutoMigrate in tests and tools.
func Models() []any {
	return []any{
		&accountrepo.Account{},
		&txrepo.Transaction{},
		&feerepo.Fee{},
		&alertrepo.Alert{},
	}
}

var _ repository.UnitOfWork = (*UoW)(nil)
