// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/barberia/backoffice/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInUse):
		Problem(w, http.StatusConflict, "Record In Use", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsServerError reports whether err maps to a 5xx response.
func IsServerError(err error) bool {
	for _, known := range []error{
		shared.ErrNotFound,
		shared.ErrConflict,
		shared.ErrInUse,
		shared.ErrValidation,
		shared.ErrInvalidCredentials,
		shared.ErrUnauthorized,
		shared.ErrForbidden,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}
