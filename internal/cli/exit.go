package cli

import "clientes-service/internal/pkg/apperrors"

const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitNotFound   = 3
	exitContention = 4
)

// ExitCode maps an operation error to the process exit status.
func ExitCode(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindNone:
		return exitOK
	case apperrors.KindValidation:
		return exitValidation
	case apperrors.KindNotFound:
		return exitNotFound
	case apperrors.KindConflict, apperrors.KindLocked, apperrors.KindConstraintViolation:
		return exitContention
	default:
		return exitFailure
	}
}
