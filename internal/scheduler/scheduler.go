// Package scheduler is the timer-driven trigger shell: every cadence fire
// it loads the non-completed job set, resolves civil time, and hands the
// batch to the dispatch coordinator. It is pure plumbing around the
// engine and coordinator, plus the overlap guard and outcome reporting.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/flycast-tech/jobremind/internal/civil"
	"github.com/flycast-tech/jobremind/internal/domain"
)

// Store loads the candidate job set. Completed jobs are excluded at the
// query level; a store read failure aborts the run with state untouched.
type Store interface {
	GetActiveJobs(ctx context.Context) ([]domain.Job, error)
}

// Coordinator runs one dispatch cycle over the loaded jobs.
type Coordinator interface {
	Run(ctx context.Context, jobs []domain.Job, now civil.Time) (domain.Report, error)
}

// Schedule yields successive fire times for the poll cadence.
type Schedule interface {
	Next(after time.Time) time.Time
}

// Lease is a held run lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker serializes runs across overlapping invocations. Acquire returns
// ok=false when another run holds the lock; that run is skipped, not
// queued.
type Locker interface {
	Acquire(ctx context.Context) (Lease, bool, error)
}

// LogSink receives fire-and-forget structured run events.
type LogSink interface {
	Event(ctx context.Context, typ, message string, data map[string]any, level string)
}

// MetricsSink records trigger-shell metrics; non-blocking.
type MetricsSink interface {
	RunStarted()
	RunCompleted(duration time.Duration, processed, sent int, err error)
	RunSkipped(reason string)
}

// Scheduler drives coordinator runs on a cron cadence.
type Scheduler struct {
	store   Store
	coord   Coordinator
	sched   Schedule
	lock    Locker      // optional, nil = no overlap guard
	logs    LogSink     // optional, nil = disabled
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

// New creates a Scheduler.
func New(store Store, coord Coordinator, sched Schedule) *Scheduler {
	return &Scheduler{
		store: store,
		coord: coord,
		sched: sched,
		clock: time.Now,
	}
}

// WithLocker attaches the overlap guard.
func (s *Scheduler) WithLocker(lock Locker) *Scheduler {
	s.lock = lock
	return s
}

// WithLogSink attaches the external log sink.
func (s *Scheduler) WithLogSink(sink LogSink) *Scheduler {
	s.logs = sink
	return s
}

// WithMetrics attaches a metrics sink.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// WithClock overrides the wall clock, for tests.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

// Run fires RunNow at each cadence tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Println("scheduler: started")

	for {
		now := s.clock()
		next := s.sched.Next(now)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("scheduler: stopped")
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := s.RunNow(ctx); err != nil {
			log.Printf("scheduler: run error: %v", err)
		}
	}
}

// RunNow executes one full reminder pass. It is also the path behind the
// manual trigger endpoint.
func (s *Scheduler) RunNow(ctx context.Context) (domain.Report, error) {
	if s.metrics != nil {
		s.metrics.RunStarted()
	}
	started := s.clock()

	if s.lock != nil {
		lease, ok, err := s.lock.Acquire(ctx)
		if err != nil {
			return domain.Report{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			log.Println("scheduler: previous run still holds the lock, skipping")
			if s.metrics != nil {
				s.metrics.RunSkipped("lock_contention")
			}
			s.event(ctx, "event", "Run skipped: previous run still in progress", nil, "warning")
			return domain.Report{Success: true}, nil
		}
		defer func() {
			if err := lease.Release(ctx); err != nil {
				log.Printf("scheduler: release run lock: %v", err)
			}
		}()
	}

	jobs, err := s.store.GetActiveJobs(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RunCompleted(s.clock().Sub(started), 0, 0, err)
		}
		s.event(ctx, "error", "Failed to fetch jobs", map[string]any{"error": err.Error()}, "error")
		return domain.Report{Success: false}, fmt.Errorf("get jobs: %w", err)
	}

	now := civil.Now(s.clock)
	report, runErr := s.coord.Run(ctx, jobs, now)

	if s.metrics != nil {
		s.metrics.RunCompleted(s.clock().Sub(started), report.Processed, report.Sent, runErr)
	}

	if runErr != nil {
		s.event(ctx, "error", "Reminder run failed", map[string]any{
			"error":          runErr.Error(),
			"totalProcessed": report.Processed,
		}, "error")
		return report, runErr
	}

	if report.Sent > 0 {
		log.Printf("scheduler: run complete processed=%d sent=%d errors=%d",
			report.Processed, report.Sent, report.Errors)
	}
	s.event(ctx, "event", "Reminder run completed", map[string]any{
		"totalProcessed": report.Processed,
		"totalSent":      report.Sent,
		"errors":         report.Errors,
	}, "info")

	return report, nil
}

// event forwards to the log sink when one is attached. Sink failures are
// the sink's problem; they never surface here.
func (s *Scheduler) event(ctx context.Context, typ, message string, data map[string]any, level string) {
	if s.logs == nil {
		return
	}
	s.logs.Event(ctx, typ, message, data, level)
}
