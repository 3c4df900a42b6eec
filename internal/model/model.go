package model

import (
	"time"

	"chorecal/internal/recurrence"
)

// Template is the reusable definition of a chore. A nil Pattern marks a
// one-off chore that is never materialized by the generator.
type Template struct {
	ID    string
	Title string

	// AnchorDate is the calendar day the recurrence is measured from
	// (typically the creation date).
	AnchorDate time.Time

	Pattern *recurrence.Pattern
}

// Recurring reports whether the template has a pattern to materialize.
func (t Template) Recurring() bool {
	return t.Pattern != nil
}

// OccurrenceStatus is owned by the completion workflow; the generator only
// ever creates pending occurrences.
type OccurrenceStatus string

const (
	StatusPending    OccurrenceStatus = "pending"
	StatusInProgress OccurrenceStatus = "in_progress"
	StatusCompleted  OccurrenceStatus = "completed"
	StatusSkipped    OccurrenceStatus = "skipped"
)

// Occurrence is one concrete, dated materialization of a template.
type Occurrence struct {
	ID         string
	TemplateID string

	// DueDate is a calendar day (midnight UTC, see recurrence.DateOf).
	DueDate time.Time

	Status    OccurrenceStatus
	CreatedAt time.Time
}

// Touched reports whether the completion workflow has moved the occurrence
// out of its initial state.
func (o Occurrence) Touched() bool {
	return o.Status != "" && o.Status != StatusPending
}
