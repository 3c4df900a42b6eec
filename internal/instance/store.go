// Package instance materializes recurrence patterns into persisted
// occurrences and reconciles persisted occurrences against their pattern.
//
// Both the Generator and the Validator do read-then-write against the Store
// without cross-call transactions. Two concurrent Generate calls for the same
// template can therefore both insert the same day; the Validator detects and
// repairs that on its next Fix. Sharing a TemplateLocks between them
// (WithLocks) serializes work per template inside one process.
//
// Nothing in this package logs or retries: store errors are returned to the
// caller unchanged.
package instance

import (
	"context"
	"time"

	"chorecal/internal/model"
)

// Store is the persistence the materializer needs for occurrences.
type Store interface {
	// ListOccurrences returns every occurrence of the template. The order is
	// the store's; when several share a day the first listed is the one a
	// Fix keeps.
	ListOccurrences(ctx context.Context, templateID string) ([]model.Occurrence, error)
	// InsertOccurrence creates a pending occurrence and returns its id.
	InsertOccurrence(ctx context.Context, templateID string, due time.Time) (string, error)
	DeleteOccurrence(ctx context.Context, id string) error
}

// Clock supplies "now". Its location decides which calendar day is today.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// LocalClock returns a wall clock reporting time in loc.
func LocalClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return ClockFunc(func() time.Time { return time.Now().In(loc) })
}
