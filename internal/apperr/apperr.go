// Package apperr defines the sentinel errors shared by every module, so
// handlers can map a failure to the right HTTP status without inspecting
// strings.
package apperr

import (
	"errors"
	"net/http"

	"gorm.io/gorm"
)

var (
	// ErrValidation — malformed or missing input, wrong file type for the
	// declared kind, score out of range, duplicate or self report.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound — a referenced game/comment/review/user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden — a non-owner mutating a game, or a non-admin moderating.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict — a unique index collision (slug, username, email).
	ErrConflict = errors.New("conflict")
	// ErrStorage — a disk or database write failed mid-operation.
	ErrStorage = errors.New("storage failure")
)

// Status maps an error to its HTTP status code. gorm's record-not-found and
// duplicate-key errors are translated so callers can return repository errors
// directly.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
