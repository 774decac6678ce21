package api

import (
	"log/slog"
	"net/http"

	"github.com/go-faster/errors"

	"privacyhub/internal/domain/dal"
)

// FailError writes the envelope for a store error. Missing rows and rows owned by
// another organization produce the same response.
func FailError(w http.ResponseWriter, err error, requestID string) {
	var constraint *dal.ConstraintError
	switch {
	case errors.Is(err, dal.ErrNotFoundOrForbidden):
		Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
	case errors.Is(err, dal.ErrValidation):
		details := dal.Details(err)
		if len(details) == 0 {
			Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
			return
		}
		FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed", map[string]any{"fields": details}, requestID)
	case errors.As(err, &constraint):
		FailWithDetails(w, http.StatusConflict, "conflict", "request conflicts with existing data", map[string]any{"constraint": constraint.Kind}, requestID)
	case errors.Is(err, dal.ErrConstraint):
		Fail(w, http.StatusConflict, "conflict", "request conflicts with existing data", requestID)
	default:
		slog.Error("request failed", "err", err, "requestId", requestID)
		Fail(w, http.StatusInternalServerError, "internal_error", "internal error", requestID)
	}
}
