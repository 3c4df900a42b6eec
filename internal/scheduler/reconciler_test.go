package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorecal/internal/instance"
	"chorecal/internal/model"
	"chorecal/internal/recurrence"
	"chorecal/internal/store"
)

type staticTemplates struct {
	templates []model.Template
	err       error
}

func (s staticTemplates) ListTemplates(context.Context) ([]model.Template, error) {
	return s.templates, s.err
}

// fixerFunc adapts a function to Fixer.
type fixerFunc func(ctx context.Context, tmpl model.Template) (instance.FixResult, error)

func (f fixerFunc) Fix(ctx context.Context, tmpl model.Template) (instance.FixResult, error) {
	return f(ctx, tmpl)
}

func daily(id string) model.Template {
	p := recurrence.MustNew(recurrence.Daily)
	return model.Template{ID: id, Title: id, AnchorDate: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), Pattern: &p}
}

func TestRunOnce_RepairsEveryRecurringTemplate(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, id := range []string{"a", "b", "c"} {
		_, err := db.CreateTemplate(ctx, daily(id))
		require.NoError(t, err)
	}
	_, err = db.CreateTemplate(ctx, model.Template{ID: "once", Title: "once", AnchorDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	clock := instance.ClockFunc(func() time.Time { return time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC) })
	validator := instance.NewValidator(db, clock, instance.WithLookAhead(7), instance.WithLocks(instance.NewTemplateLocks()))

	inserted := testutil.ToFloat64(occurrencesChanged.WithLabelValues("inserted"))
	r := NewReconciler(db, validator, 2)

	summary, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Templates)
	assert.Equal(t, 3, summary.Drifted)
	assert.Equal(t, 21, summary.Inserted)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, inserted+21, testutil.ToFloat64(occurrencesChanged.WithLabelValues("inserted")))

	summary, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Templates)
	assert.Zero(t, summary.Drifted)
	assert.Zero(t, summary.Inserted)
}

func TestRunOnce_TemplateFailureDoesNotStopPass(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	fixer := fixerFunc(func(_ context.Context, tmpl model.Template) (instance.FixResult, error) {
		calls.Add(1)
		if tmpl.ID == "bad" {
			return instance.FixResult{Deleted: []string{"x"}}, boom
		}
		return instance.FixResult{}, nil
	})
	failed := testutil.ToFloat64(templatesReconciled.WithLabelValues(resultFailed))

	r := NewReconciler(staticTemplates{templates: []model.Template{daily("a"), daily("bad"), daily("c")}}, fixer, 0)
	summary, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Deleted)
	assert.Equal(t, failed+1, testutil.ToFloat64(templatesReconciled.WithLabelValues(resultFailed)))
}

func TestRunOnce_ListFailure(t *testing.T) {
	boom := errors.New("db down")
	r := NewReconciler(staticTemplates{err: boom}, fixerFunc(nil), 1)
	_, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunOnce_RespectsConcurrencyLimit(t *testing.T) {
	var inside, peak atomic.Int32
	fixer := fixerFunc(func(context.Context, model.Template) (instance.FixResult, error) {
		n := inside.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inside.Add(-1)
		return instance.FixResult{}, nil
	})

	var templates []model.Template
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		templates = append(templates, daily(id))
	}
	_, err := NewReconciler(staticTemplates{templates: templates}, fixer, 3).RunOnce(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRunOnce_OverlappingPassIsRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	fixer := fixerFunc(func(context.Context, model.Template) (instance.FixResult, error) {
		once.Do(func() { close(started) })
		<-release
		return instance.FixResult{}, nil
	})
	r := NewReconciler(staticTemplates{templates: []model.Template{daily("a")}}, fixer, 1)

	done := make(chan error, 1)
	go func() {
		_, err := r.RunOnce(context.Background())
		done <- err
	}()
	<-started

	_, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrPassRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestRunOnce_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	fixer := fixerFunc(func(context.Context, model.Template) (instance.FixResult, error) {
		calls.Add(1)
		return instance.FixResult{}, nil
	})
	_, err := NewReconciler(staticTemplates{templates: []model.Template{daily("a"), daily("b")}}, fixer, 1).RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}
