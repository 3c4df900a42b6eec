// Package scheduler runs the validator's Fix over every template, on demand
// or on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"chorecal/internal/instance"
	appLog "chorecal/internal/log"
	"chorecal/internal/model"
)

// DefaultConcurrency is the number of templates reconciled at once.
const DefaultConcurrency = 4

// ErrPassRunning is returned by RunOnce while another pass is in progress.
var ErrPassRunning = errors.New("reconcile pass already running")

// TemplateSource lists the templates a pass covers.
type TemplateSource interface {
	ListTemplates(ctx context.Context) ([]model.Template, error)
}

// Fixer repairs one template; *instance.Validator implements it.
type Fixer interface {
	Fix(ctx context.Context, tmpl model.Template) (instance.FixResult, error)
}

// PassSummary totals one reconcile pass.
type PassSummary struct {
	Templates int           `json:"templates"`
	Drifted   int           `json:"drifted"`
	Inserted  int           `json:"inserted"`
	Deleted   int           `json:"deleted"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

type Reconciler struct {
	templates   TemplateSource
	fixer       Fixer
	concurrency int
	running     atomic.Bool
}

func NewReconciler(templates TemplateSource, fixer Fixer, concurrency int) *Reconciler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Reconciler{templates: templates, fixer: fixer, concurrency: concurrency}
}

// RunOnce fixes every recurring template. A failure on one template is
// logged and counted and does not stop the pass; only a failure to list
// templates (or ctx cancellation) is returned.
func (r *Reconciler) RunOnce(ctx context.Context) (PassSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		passesSkipped.Inc()
		return PassSummary{}, ErrPassRunning
	}
	defer r.running.Store(false)

	start := time.Now()
	templates, err := r.templates.ListTemplates(ctx)
	if err != nil {
		return PassSummary{}, err
	}

	var (
		mu      sync.Mutex
		summary PassSummary
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, tmpl := range templates {
		if !tmpl.Recurring() {
			continue
		}
		summary.Templates++
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := r.fixer.Fix(gCtx, tmpl)

			mu.Lock()
			defer mu.Unlock()
			// A failed Fix may still have written part of its repair.
			summary.Inserted += len(res.Inserted)
			summary.Deleted += len(res.Deleted)
			occurrencesChanged.WithLabelValues("inserted").Add(float64(len(res.Inserted)))
			occurrencesChanged.WithLabelValues("deleted").Add(float64(len(res.Deleted)))

			switch {
			case err != nil:
				appLog.Error("reconcile template failed", err, "template", tmpl.ID)
				summary.Failed++
				templatesReconciled.WithLabelValues(resultFailed).Inc()
			case res.Changed():
				summary.Drifted++
				templatesReconciled.WithLabelValues(resultRepaired).Inc()
				appLog.Info("template repaired",
					"template", tmpl.ID,
					"missing", len(res.Report.MissingDates),
					"duplicates", len(res.Report.DuplicateDates),
					"extras", len(res.Report.ExtraOccurrences),
				)
			default:
				if !res.Report.IsValid() {
					summary.Drifted++
				}
				templatesReconciled.WithLabelValues(resultClean).Inc()
			}
			return nil
		})
	}
	err = g.Wait()

	summary.Duration = time.Since(start)
	passDuration.Observe(summary.Duration.Seconds())
	if err == nil {
		err = ctx.Err()
	}
	appLog.Info("reconcile pass finished",
		"templates", summary.Templates,
		"drifted", summary.Drifted,
		"inserted", summary.Inserted,
		"deleted", summary.Deleted,
		"failed", summary.Failed,
		"took", summary.Duration.Round(time.Millisecond),
	)
	return summary, err
}
