package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"stockpost/internal/core/apperror"
)

// SQLSTATE codes the platform reacts to.
const (
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgQueryCanceled        = "57014"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgNotNullViolation     = "23502"
)

// TranslateError maps PostgreSQL failures onto AppErrors.
// AppErrors and nil pass through unchanged.
func TranslateError(err error) error {
	if err == nil || apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return apperror.NewConcurrencyTimeout(err)
		case pgQueryCanceled:
			return apperror.NewTimeout(err)
		case pgUniqueViolation:
			return apperror.NewConflict("Record already exists").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgForeignKeyViolation, pgCheckViolation, pgNotNullViolation:
			return apperror.NewValidation("Constraint violated").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
		return apperror.NewDatabase(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.NewTimeout(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperror.NewDatabase(err)
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally on a specific constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
