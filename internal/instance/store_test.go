package instance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"chorecal/internal/model"
	"chorecal/internal/recurrence"
)

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory Store with failure injection.
type memStore struct {
	mu   sync.Mutex
	seq  int
	occs []model.Occurrence

	listCalls, inserts, deletes int

	failList   error
	failInsert error
	failDelete error

	// afterList runs outside the lock after every successful list.
	afterList func()
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) ListOccurrences(_ context.Context, templateID string) ([]model.Occurrence, error) {
	m.mu.Lock()
	m.listCalls++
	if m.failList != nil {
		m.mu.Unlock()
		return nil, m.failList
	}
	var out []model.Occurrence
	for _, o := range m.occs {
		if o.TemplateID == templateID {
			out = append(out, o)
		}
	}
	m.mu.Unlock()

	slices.SortStableFunc(out, func(a, b model.Occurrence) int { return a.DueDate.Compare(b.DueDate) })
	if m.afterList != nil {
		m.afterList()
	}
	return out, nil
}

func (m *memStore) InsertOccurrence(_ context.Context, templateID string, due time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return "", m.failInsert
	}
	m.seq++
	id := fmt.Sprintf("occ-%03d", m.seq)
	m.occs = append(m.occs, model.Occurrence{
		ID:         id,
		TemplateID: templateID,
		DueDate:    recurrence.DateOf(due),
		Status:     model.StatusPending,
	})
	m.inserts++
	return id, nil
}

func (m *memStore) DeleteOccurrence(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}
	i := slices.IndexFunc(m.occs, func(o model.Occurrence) bool { return o.ID == id })
	if i < 0 {
		return fmt.Errorf("occurrence %s not found", id)
	}
	m.occs = slices.Delete(m.occs, i, i+1)
	m.deletes++
	return nil
}

func (m *memStore) setStatus(id string, status model.OccurrenceStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.occs {
		if m.occs[i].ID == id {
			m.occs[i].Status = status
		}
	}
}

// dueDates returns the template's persisted days as YYYY-MM-DD, ascending,
// one entry per occurrence.
func (m *memStore) dueDates(templateID string) []string {
	occs, _ := m.ListOccurrences(context.Background(), templateID)
	out := make([]string, len(occs))
	for i, o := range occs {
		out[i] = o.DueDate.Format(time.DateOnly)
	}
	return out
}

func (m *memStore) snapshot() []model.Occurrence {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.occs)
}

func fixedClock(s string) Clock {
	now, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return ClockFunc(func() time.Time { return now })
}

func day(s string) time.Time {
	d, err := recurrence.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func template(id, anchor string, p recurrence.Pattern) model.Template {
	return model.Template{ID: id, Title: id, AnchorDate: day(anchor), Pattern: &p}
}
