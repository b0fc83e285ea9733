package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by both backends.
var (
	// ErrNotFound reports that a referenced user, thread, comment or
	// subscription does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is reserved for uniqueness violations. No current
	// operation raises it; idempotent paths absorb duplicates instead.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports malformed input: an invalid vote direction, a
// missing required field, an unknown reason code.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidQueryError reports an unsupported filter or query parameter.
type InvalidQueryError struct {
	Param string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("unsupported query parameter: %s", e.Param)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
