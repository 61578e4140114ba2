package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tourism/backoffice/internal/domain/shared"
	"gorm.io/gorm"
)

// SQLSTATE codes classified by translateError
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
)

// translateError maps driver and gorm errors onto domain errors.
// Errors that are already domain errors, and unclassified errors, pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return shared.ErrIntegrityViolation
	case errors.Is(err, context.DeadlineExceeded):
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return shared.ErrAlreadyExists
		case pgForeignKeyViolation:
			return shared.ErrIntegrityViolation
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return shared.ErrConcurrencyConflict
		case pgQueryCanceled:
			return context.DeadlineExceeded
		}
	}
	return err
}

// IsRetryable reports whether err is a transient conflict the caller may retry
func IsRetryable(err error) bool {
	return errors.Is(translateError(err), shared.ErrConcurrencyConflict)
}
