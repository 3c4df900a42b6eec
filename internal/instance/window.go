package instance

import (
	"time"

	"chorecal/internal/model"
	"chorecal/internal/recurrence"
)

const (
	DefaultLookAheadDays = 90
	// DefaultMaxCandidates caps how many engine dates are considered per
	// call, before the horizon filter.
	DefaultMaxCandidates = 1000

	nearTermDays      = 7
	nearTermThreshold = 3
)

type settings struct {
	lookAheadDays   int
	maxCandidates   int
	preserveTouched bool
	locks           *TemplateLocks
}

func defaultSettings() settings {
	return settings{
		lookAheadDays: DefaultLookAheadDays,
		maxCandidates: DefaultMaxCandidates,
	}
}

// Option configures a Generator or Validator.
type Option func(*settings)

// WithLookAhead sets how many days past the window start are materialized.
func WithLookAhead(days int) Option {
	return func(s *settings) { s.lookAheadDays = max(days, 0) }
}

// WithMaxCandidates caps the number of engine dates examined per call.
func WithMaxCandidates(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxCandidates = n
		}
	}
}

// WithPreserveTouched makes Fix keep occurrences the completion workflow has
// already moved out of pending, even when they are duplicates or extras.
func WithPreserveTouched(preserve bool) Option {
	return func(s *settings) { s.preserveTouched = preserve }
}

// WithLocks serializes Generate and Fix per template through l.
func WithLocks(l *TemplateLocks) Option {
	return func(s *settings) { s.locks = l }
}

func applyOptions(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Window returns the materialization window (start, horizon]: start is the
// later of the anchor day and today, horizon is lookAheadDays after it.
// Dates equal to start are outside the window.
func Window(anchor, now time.Time, lookAheadDays int) (start, horizon time.Time) {
	start = recurrence.DateOf(now)
	if a := recurrence.DateOf(anchor); a.After(start) {
		start = a
	}
	return start, recurrence.AddDays(start, lookAheadDays)
}

// expectedDates lists the pattern's dates inside the window, ascending.
func expectedDates(tmpl model.Template, now time.Time, s settings) (start, horizon time.Time, out []time.Time) {
	start, horizon = Window(tmpl.AnchorDate, now, s.lookAheadDays)
	if tmpl.Pattern == nil {
		return start, horizon, nil
	}
	considered := 0
	for d := range recurrence.Sequence(*tmpl.Pattern, tmpl.AnchorDate, start) {
		considered++
		if d.After(horizon) || considered > s.maxCandidates {
			break
		}
		out = append(out, d)
	}
	return start, horizon, out
}

func inWindow(d, start, horizon time.Time) bool {
	return d.After(start) && !d.After(horizon)
}
