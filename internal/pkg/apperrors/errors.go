package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrConstraintViolation = errors.New("constraint violation")

	ErrLocked = errors.New("another writer is currently modifying this row, retry later")

	ErrConflict = errors.New("row was modified by someone else between load and update")

	ErrConnectivity = errors.New("database connectivity error")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")
)

// Kind is the closed set of outcomes a customer operation can report.
type Kind string

const (
	KindNone                Kind = "success"
	KindValidation          Kind = "validation"
	KindConstraintViolation Kind = "constraint_violation"
	KindLocked              Kind = "locked"
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindConnectivity        Kind = "connectivity"
	KindQuery               Kind = "query"
	KindInternal            Kind = "internal"
)

// KindOf classifies err. Order matters: a wrapped chain may carry both a
// specific sentinel and ErrDatabase.
func KindOf(err error) Kind {
	var validationError *ValidationError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidArgument), errors.As(err, &validationError):
		return KindValidation
	case errors.Is(err, ErrConstraintViolation):
		return KindConstraintViolation
	case errors.Is(err, ErrLocked):
		return KindLocked
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConnectivity):
		return KindConnectivity
	case errors.Is(err, ErrDatabase):
		return KindQuery
	default:
		return KindInternal
	}
}

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    "DB_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}

func WrapConnectivityError(cause error, message string) error {
	return &AppError{
		Code:    "DB_UNAVAILABLE",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrConnectivity, cause),
	}
}
