package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("diagram not found")
	ErrForbidden       = errors.New("actor does not own this diagram")
	ErrUnauthenticated = errors.New("missing actor")
	ErrValidation      = errors.New("validation failed")
	ErrTransient       = errors.New("transient storage failure")
)

// VersionConflictError is returned when the caller's expected_version no
// longer matches the stored current_version. No mutation has happened.
type VersionConflictError struct {
	Expected int
	Current  int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, current %d", e.Expected, e.Current)
}

// Detail is the user-facing conflict message emitted on HTTP 409.
func (e *VersionConflictError) Detail() string {
	return fmt.Sprintf(
		"Diagram was modified by another user. Expected version %d, but current version is %d. Please refresh and try again.",
		e.Expected, e.Current,
	)
}
