// Package sweep re-derives, from job state alone, which jobs should have
// received a reminder by now but did not.
//
// It exists to recover from a stretch of missed scheduled runs (host
// downtime, deploy gaps). No execution log is consulted: everything is
// recomputed from the stored reminder bookkeeping, and the findings are
// fed back through the coordinator's dispatch path, whose idempotent
// bookkeeping makes a spurious re-derivation harmless.
package sweep

import (
	"context"
	"log"
	"time"

	"github.com/flycast-tech/jobremind/internal/civil"
	"github.com/flycast-tech/jobremind/internal/dispatcher"
	"github.com/flycast-tech/jobremind/internal/domain"
	"github.com/flycast-tech/jobremind/internal/engine"
)

// Store fetches the candidate job set.
type Store interface {
	GetActiveJobs(ctx context.Context) ([]domain.Job, error)
}

// Dispatcher is the coordinator's direct dispatch path.
type Dispatcher interface {
	Dispatch(ctx context.Context, candidates []dispatcher.Candidate, now civil.Time) (domain.Report, error)
}

// MetricsSink records sweep metrics; non-blocking, fire-and-forget.
type MetricsSink interface {
	MissedFound(count int)
}

// Config holds sweep configuration.
type Config struct {
	// Interval is how often the periodic sweep runs. Default: 1 hour.
	Interval time.Duration
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() Config {
	return Config{Interval: time.Hour}
}

// Sweeper finds and re-dispatches missed reminders.
type Sweeper struct {
	config  Config
	engine  *engine.Engine
	store   Store
	disp    Dispatcher
	clock   func() time.Time
	metrics MetricsSink // optional, nil = disabled
}

// New creates a Sweeper.
func New(config Config, eng *engine.Engine, store Store, disp Dispatcher) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Sweeper{
		config: config,
		engine: eng,
		store:  store,
		disp:   disp,
		clock:  time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Sweeper) WithClock(clock func() time.Time) *Sweeper {
	s.clock = clock
	return s
}

// WithMetrics attaches a metrics sink.
func (s *Sweeper) WithMetrics(sink MetricsSink) *Sweeper {
	s.metrics = sink
	return s
}

// Run starts the periodic sweep loop. It blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	log.Printf("sweep: started (interval=%s)", s.config.Interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("sweep: stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				log.Printf("sweep: cycle error: %v", err)
			}
		}
	}
}

// RunOnce executes one sweep cycle: fetch, derive, re-dispatch.
func (s *Sweeper) RunOnce(ctx context.Context) (domain.Report, error) {
	now := civil.Now(s.clock)

	jobs, err := s.store.GetActiveJobs(ctx)
	if err != nil {
		return domain.Report{Success: false}, err
	}

	missed := s.FindMissed(jobs, now)
	if s.metrics != nil {
		s.metrics.MissedFound(len(missed))
	}
	if len(missed) == 0 {
		return domain.Report{Processed: len(jobs), Success: true}, nil
	}

	log.Printf("sweep: found %d missed reminders", len(missed))

	report, err := s.disp.Dispatch(ctx, missed, now)
	report.Processed = len(jobs)
	return report, err
}

// FindMissed returns the jobs whose reminder provably should have fired
// already. Unlike live evaluation it ignores the send window for firing -
// the window is only used to decide whether "not sent yet" means "missed"
// or "not yet due today":
//
//   - due tomorrow, window already passed, not reminded today;
//   - overdue at or past the next unacknowledged milestone, once the
//     milestone day's window has passed (later days count unconditionally);
//   - snooze expired with no reminder recorded since.
func (s *Sweeper) FindMissed(jobs []domain.Job, now civil.Time) []dispatcher.Candidate {
	var missed []dispatcher.Candidate

	for _, job := range jobs {
		if job.Status == domain.StatusCompleted {
			continue
		}

		if job.SnoozeExpiresAt != nil {
			if job.SnoozeExpiresAt.After(now.Wall()) {
				continue // still suppressed
			}
			if !job.ReminderSent {
				missed = append(missed, dispatcher.Candidate{
					Job:      job,
					Decision: engine.Decision{Cause: engine.CauseSnoozeExpired},
				})
			}
			continue
		}

		deadline, err := civil.ParseDate(job.ProductionDeadline)
		if err != nil {
			continue
		}

		if sentToday(job, now) {
			continue
		}

		daysOverdue := civil.DaysBetween(deadline, now.Date())
		if daysOverdue > 0 {
			milestones := s.engine.Milestones()
			if job.OverdueReminderCount >= len(milestones) {
				continue
			}
			next := milestones[job.OverdueReminderCount]
			if daysOverdue > next || (daysOverdue == next && s.engine.WindowPassed(now)) {
				missed = append(missed, dispatcher.Candidate{
					Job:      job,
					Decision: engine.Decision{Cause: engine.CauseOverdue, Milestone: job.OverdueReminderCount},
				})
			}
			continue
		}

		if civil.SameDay(deadline, now.Tomorrow()) && s.engine.WindowPassed(now) && !job.ReminderSent {
			missed = append(missed, dispatcher.Candidate{
				Job:      job,
				Decision: engine.Decision{Cause: engine.CauseDueTomorrow},
			})
		}
	}

	return missed
}

func sentToday(job domain.Job, now civil.Time) bool {
	return job.LastReminderSentAt != nil && civil.SameDay(*job.LastReminderSentAt, now.Wall())
}
