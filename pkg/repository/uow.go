package repository

import (
	"context"
	"reflect"
)

// UnitOfWork is the transaction boundary of the ledger store.
//
// Do runs fn inside one database transaction; every repository obtained from
// the UnitOfWork passed to fn is bound to that transaction, and an error
// returned by fn rolls all of it back.
//
//	err := uow.Do(ctx, func(tx repository.UnitOfWork) error {
//	    accounts, err := tx.AccountRepository()
//	    ...
//	})
type UnitOfWork interface {
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	// GetRepository returns a repository of the requested interface type,
	// bound to the current session.
	GetRepository(repoType reflect.Type) (any, error)

	AccountRepository() (AccountRepository, error)
	TransactionRepository() (TransactionRepository, error)
	FeeRepository() (FeeRepository, error)
	AlertRepository() (AlertRepository, error)
}
