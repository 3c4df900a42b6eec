package instance

import (
	"context"
	"slices"
	"time"

	"chorecal/internal/model"
	"chorecal/internal/recurrence"
)

// Report compares the dates a pattern implies against what is persisted,
// over the same window the Generator uses. Occurrences outside the window
// (history, or beyond the horizon) are not classified.
type Report struct {
	TemplateID  string
	WindowStart time.Time
	Horizon     time.Time

	Expected []time.Time
	// Actual holds the persisted occurrences inside the window, in store order.
	Actual []model.Occurrence

	// MissingDates are expected days with no occurrence.
	MissingDates []time.Time
	// DuplicateDates are days holding more than one occurrence.
	DuplicateDates []time.Time
	// ExtraOccurrences sit on days the pattern does not imply.
	ExtraOccurrences []model.Occurrence
}

// IsValid reports whether no drift was found.
func (r Report) IsValid() bool {
	return len(r.MissingDates) == 0 && len(r.DuplicateDates) == 0 && len(r.ExtraOccurrences) == 0
}

// FixResult is what a Fix changed in the store.
type FixResult struct {
	Report   Report
	Deleted  []string
	Inserted []model.Occurrence
}

// Changed reports whether the store was modified.
func (f FixResult) Changed() bool {
	return len(f.Deleted) > 0 || len(f.Inserted) > 0
}

// Validator detects and repairs drift between a template's pattern and its
// persisted occurrences.
type Validator struct {
	store Store
	clock Clock
	s     settings
}

func NewValidator(store Store, clock Clock, opts ...Option) *Validator {
	return &Validator{store: store, clock: clock, s: applyOptions(opts)}
}

// Validate recomputes the expected days and classifies the persisted
// occurrences against them. It never writes.
func (v *Validator) Validate(ctx context.Context, tmpl model.Template) (Report, error) {
	return v.validate(ctx, tmpl, v.clock.Now())
}

func (v *Validator) validate(ctx context.Context, tmpl model.Template, now time.Time) (Report, error) {
	start, horizon, expected := expectedDates(tmpl, now, v.s)
	r := Report{
		TemplateID:  tmpl.ID,
		WindowStart: start,
		Horizon:     horizon,
		Expected:    expected,
	}
	if !tmpl.Recurring() {
		return r, nil
	}

	all, err := v.store.ListOccurrences(ctx, tmpl.ID)
	if err != nil {
		return Report{}, err
	}
	for _, o := range all {
		if inWindow(recurrence.DateOf(o.DueDate), start, horizon) {
			r.Actual = append(r.Actual, o)
		}
	}

	days, byDay := groupByDay(r.Actual)
	want := make(map[time.Time]struct{}, len(expected))
	for _, d := range expected {
		want[d] = struct{}{}
		if len(byDay[d]) == 0 {
			r.MissingDates = append(r.MissingDates, d)
		}
	}
	for _, d := range days {
		occs := byDay[d]
		if len(occs) > 1 {
			r.DuplicateDates = append(r.DuplicateDates, d)
		}
		if _, ok := want[d]; !ok {
			r.ExtraOccurrences = append(r.ExtraOccurrences, occs...)
		}
	}
	return r, nil
}

// Fix validates tmpl and then repairs what it found: every duplicate day
// keeps one occurrence (the first listed, or with WithPreserveTouched the
// first touched one), extras are deleted, and missing days are inserted.
// Running Fix again without other changes does nothing.
//
// Deleting extras is unconditional unless WithPreserveTouched is set, in
// which case touched occurrences survive and keep being reported.
func (v *Validator) Fix(ctx context.Context, tmpl model.Template) (FixResult, error) {
	unlock := v.s.locks.Lock(tmpl.ID)
	defer unlock()

	r, err := v.validate(ctx, tmpl, v.clock.Now())
	if err != nil {
		return FixResult{}, err
	}
	res := FixResult{Report: r}
	if r.IsValid() {
		return res, nil
	}

	deleted := make(map[string]struct{})
	drop := func(o model.Occurrence) error {
		if _, done := deleted[o.ID]; done {
			return nil
		}
		if v.s.preserveTouched && o.Touched() {
			return nil
		}
		if err := v.store.DeleteOccurrence(ctx, o.ID); err != nil {
			return err
		}
		deleted[o.ID] = struct{}{}
		res.Deleted = append(res.Deleted, o.ID)
		return nil
	}

	_, byDay := groupByDay(r.Actual)
	for _, d := range r.DuplicateDates {
		occs := byDay[d]
		keep := v.keeper(occs)
		for i, o := range occs {
			if i == keep {
				continue
			}
			if err := drop(o); err != nil {
				return res, err
			}
		}
	}
	for _, o := range r.ExtraOccurrences {
		if err := drop(o); err != nil {
			return res, err
		}
	}
	for _, d := range r.MissingDates {
		id, err := v.store.InsertOccurrence(ctx, tmpl.ID, d)
		if err != nil {
			return res, err
		}
		res.Inserted = append(res.Inserted, model.Occurrence{
			ID:         id,
			TemplateID: tmpl.ID,
			DueDate:    d,
			Status:     model.StatusPending,
		})
	}
	return res, nil
}

// keeper picks which of a day's occurrences survives deduplication.
func (v *Validator) keeper(occs []model.Occurrence) int {
	if v.s.preserveTouched {
		if i := slices.IndexFunc(occs, model.Occurrence.Touched); i >= 0 {
			return i
		}
	}
	return 0
}

// groupByDay buckets occurrences by calendar day, keeping store order inside
// each bucket. days is ascending.
func groupByDay(occs []model.Occurrence) (days []time.Time, byDay map[time.Time][]model.Occurrence) {
	byDay = make(map[time.Time][]model.Occurrence)
	for _, o := range occs {
		d := recurrence.DateOf(o.DueDate)
		if _, seen := byDay[d]; !seen {
			days = append(days, d)
		}
		byDay[d] = append(byDay[d], o)
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	return days, byDay
}
