package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clientes-service/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"

	pgClassIntegrityConstraint = "23"
	pgClassConnectionException = "08"
)

// translateDBError maps a driver error onto the apperrors taxonomy. message
// describes the failed step and ends up in the returned error text.
func translateDBError(err error, message string, logger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	if errors.Is(err, apperrors.ErrDatabase) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			logger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s: %s", apperrors.ErrConstraintViolation, message, pgErr.ConstraintName)
		case sqlStateClass(pgErr.Code) == pgClassIntegrityConstraint:
			logger.Warn("Database integrity constraint violation", "code", pgErr.Code, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s: %s", apperrors.ErrConstraintViolation, message, pgErr.Message)
		case pgErr.Code == pgLockNotAvailable:
			logger.Warn("Row lock not available", "message", pgErr.Message)
			return fmt.Errorf("%w: %s", apperrors.ErrLocked, message)
		case sqlStateClass(pgErr.Code) == pgClassConnectionException:
			logger.Error("PostgreSQL connection exception", "code", pgErr.Code, "message", pgErr.Message)
			return apperrors.WrapConnectivityError(err, message)
		}

		logger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return apperrors.WrapDatabaseError(err, message)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("Database call abandoned by caller", "error", err)
	} else {
		logger.Error("Database driver error", "error", err)
	}
	return apperrors.WrapConnectivityError(err, message)
}

func sqlStateClass(code string) string {
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}

func queryStatus(err error) string {
	if err == nil || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
		return "success"
	}
	return "error"
}
