package shared

import "errors"

var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness rule was violated.
	ErrConflict = errors.New("conflict")
	// ErrInUse indicates a delete was rejected because other records still reference the row.
	ErrInUse = errors.New("record still referenced")
	// ErrValidation indicates the input breaks a domain invariant.
	ErrValidation = errors.New("validation failed")
	// ErrStorage indicates the backing store failed (connection, commit, unexpected SQL error).
	ErrStorage = errors.New("storage error")
	// ErrUnauthorized indicates the request carries no staff session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the session user is not staff.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
