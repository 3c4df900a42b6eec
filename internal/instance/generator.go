package instance

import (
	"context"
	"time"

	"chorecal/internal/model"
	"chorecal/internal/recurrence"
)

// Generator inserts the occurrences a template's pattern implies within the
// look-ahead window and that the store does not have yet.
type Generator struct {
	store Store
	clock Clock
	s     settings
}

func NewGenerator(store Store, clock Clock, opts ...Option) *Generator {
	return &Generator{store: store, clock: clock, s: applyOptions(opts)}
}

// Generate materializes missing occurrences for tmpl and returns those it
// inserted. Days already holding at least one occurrence are left alone, so
// repeated calls without other changes insert nothing. Templates without a
// pattern are a no-op.
//
// On a store error the occurrences inserted so far are returned with it.
func (g *Generator) Generate(ctx context.Context, tmpl model.Template) ([]model.Occurrence, error) {
	if !tmpl.Recurring() {
		return nil, nil
	}
	unlock := g.s.locks.Lock(tmpl.ID)
	defer unlock()

	_, _, want := expectedDates(tmpl, g.clock.Now(), g.s)
	if len(want) == 0 {
		return nil, nil
	}

	existing, err := g.store.ListOccurrences(ctx, tmpl.ID)
	if err != nil {
		return nil, err
	}
	have := make(map[time.Time]struct{}, len(existing))
	for _, o := range existing {
		have[recurrence.DateOf(o.DueDate)] = struct{}{}
	}

	var inserted []model.Occurrence
	for _, d := range want {
		if _, ok := have[d]; ok {
			continue
		}
		id, err := g.store.InsertOccurrence(ctx, tmpl.ID, d)
		if err != nil {
			return inserted, err
		}
		have[d] = struct{}{}
		inserted = append(inserted, model.Occurrence{
			ID:         id,
			TemplateID: tmpl.ID,
			DueDate:    d,
			Status:     model.StatusPending,
		})
	}
	return inserted, nil
}

// NeedsGeneration is a scheduling hint: true when tmpl is recurring and
// fewer than three pending occurrences fall within the next seven days.
func (g *Generator) NeedsGeneration(ctx context.Context, tmpl model.Template) (bool, error) {
	if !tmpl.Recurring() {
		return false, nil
	}
	existing, err := g.store.ListOccurrences(ctx, tmpl.ID)
	if err != nil {
		return false, err
	}

	today := recurrence.DateOf(g.clock.Now())
	until := recurrence.AddDays(today, nearTermDays)
	pending := 0
	for _, o := range existing {
		d := recurrence.DateOf(o.DueDate)
		if o.Touched() || d.Before(today) || d.After(until) {
			continue
		}
		pending++
	}
	return pending < nearTermThreshold, nil
}
