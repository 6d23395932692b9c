// Package gormerr maps gorm errors onto domain errors so that nothing above the
// repositories needs to import gorm.
package gormerr

import (
	"errors"

	"github.com/amirasaad/usdledger/pkg/domain"
	"gorm.io/gorm"
)

// MapToDomain converts GORM errors to domain errors.
// Traverses the error chain to find GORM errors and maps them to appropriate domain errors.
func MapToDomain(err error) error {
	if err == nil {
		return nil
	}

	currentErr := err
	for currentErr != nil {
		switch {
		case errors.Is(currentErr, gorm.ErrDuplicatedKey):
			return domain.ErrAlreadyExists
		case errors.Is(currentErr, gorm.ErrRecordNotFound):
			return domain.ErrNotFound
		case errors.Is(currentErr, gorm.ErrCheckConstraintViolated):
			// balance >= 0 is also enforced by the schema
			return domain.ErrInsufficientFunds
		}
		currentErr = errors.Unwrap(currentErr)
	}

	return err
}

// Wrap runs a GORM operation and maps its error.
//
//	err := gormerr.Wrap(func() error {
//	    return r.db.WithContext(ctx).Create(&m).Error
//	})
func Wrap(op func() error) error {
	return MapToDomain(op())
}
