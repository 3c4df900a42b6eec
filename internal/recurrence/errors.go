package recurrence

import (
	"errors"
	"fmt"
)

// ErrInvalidPattern is matched (via errors.Is) by every error returned when a
// pattern is constructed or decoded with values that break its invariants.
var ErrInvalidPattern = errors.New("invalid recurrence pattern")

// PatternError describes which field of a pattern was rejected and why.
type PatternError struct {
	Field  string
	Reason string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid recurrence pattern: %s: %s", e.Field, e.Reason)
}

// Is reports true for ErrInvalidPattern so callers can test the category
// without caring about the specific field.
func (e *PatternError) Is(target error) bool {
	return target == ErrInvalidPattern
}

func invalid(field, format string, args ...any) error {
	return &PatternError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
