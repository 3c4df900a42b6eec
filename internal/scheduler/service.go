package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "chorecal/internal/log"
)

// Service wraps cron-based jobs.
type Service struct {
	cron *cron.Cron
}

func NewService(loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	l := cronLogger{}
	return &Service{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
	}
}

// ParseSpec checks a standard five-field cron expression (descriptors such
// as "@hourly" are accepted too).
func ParseSpec(spec string) (cron.Schedule, error) {
	return cron.ParseStandard(spec)
}

// Schedule registers job under a standard cron spec.
func (s *Service) Schedule(spec string, job func()) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return 0, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return id, nil
}

// ScheduleReconcile runs r on spec until ctx is done. Passes get ctx as
// their parent context.
func (s *Service) ScheduleReconcile(ctx context.Context, spec string, r *Reconciler) (cron.EntryID, error) {
	return s.Schedule(spec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("scheduled reconcile failed", err)
		}
	})
}

// Next reports when the entry runs next; zero if it is unknown.
func (s *Service) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *Service) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// cronLogger routes cron's own logging through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
