package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"clientes-service/internal/api/handler/dto"
	"clientes-service/internal/pkg/apperrors"
)

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"code":"INTERNAL","message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// statusFor maps an error kind onto the HTTP status and stable error code
// returned to clients.
func statusFor(kind apperrors.Kind) (int, string) {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest, "VALIDATION_FAILED"
	case apperrors.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case apperrors.KindConstraintViolation:
		return http.StatusConflict, "ALREADY_EXISTS"
	case apperrors.KindConflict:
		return http.StatusConflict, "STALE_SNAPSHOT"
	case apperrors.KindLocked:
		return http.StatusLocked, "LOCKED"
	case apperrors.KindConnectivity:
		return http.StatusServiceUnavailable, "DB_UNAVAILABLE"
	case apperrors.KindQuery:
		return http.StatusInternalServerError, "DB_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func respondError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	status, code := statusFor(kind)
	detail := dto.ErrorDetail{Code: code}

	var validationError *apperrors.ValidationError
	switch kind {
	case apperrors.KindValidation:
		if errors.As(err, &validationError) {
			detail.Message, detail.Field = validationError.Message, validationError.Field
		} else {
			detail.Message = err.Error()
		}
	case apperrors.KindNotFound:
		detail.Message = "Customer not found."
	case apperrors.KindConstraintViolation:
		detail.Message = "A customer with this id already exists."
	case apperrors.KindConflict:
		detail.Message = apperrors.ErrConflict.Error()
	case apperrors.KindLocked:
		detail.Message = apperrors.ErrLocked.Error()
	case apperrors.KindConnectivity:
		detail.Message = "The database is unavailable, try again later."
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
		detail.Message = "An unexpected error occurred."
	}

	respondJSON(w, status, dto.ErrorResponse{Error: detail})
}

// logLevelFor keeps expected outcomes out of the error log.
func logLevelFor(err error) slog.Level {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindNotFound, apperrors.KindConflict,
		apperrors.KindLocked, apperrors.KindConstraintViolation:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
