// Package dispatcher turns eligibility decisions into one digest email per
// run and owns the reminder bookkeeping that follows a successful send.
package dispatcher

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/flycast-tech/jobremind/internal/civil"
	"github.com/flycast-tech/jobremind/internal/domain"
	"github.com/flycast-tech/jobremind/internal/engine"
)

// Store persists reminder bookkeeping. MarkReminded must be a single
// atomic per-row update: set last_reminder_sent_at, mark reminder_sent,
// clear any snooze, and increment the overdue count iff incrementOverdue.
type Store interface {
	MarkReminded(ctx context.Context, jobID uuid.UUID, sentAt time.Time, incrementOverdue bool) error
}

// MailSender delivers one digest email. The call is a single failure
// domain: on error nothing was delivered and no job may be marked.
type MailSender interface {
	SendDigest(ctx context.Context, entries []DigestEntry, cfg domain.EmailConfig) error
}

// EmailConfigSource resolves the outbound mail identity for a run.
type EmailConfigSource interface {
	EmailConfig(ctx context.Context) (domain.EmailConfig, error)
}

// AnalyticsSink records dispatched reminders as a best-effort side effect.
// Implementations handle their own errors; analytics never affects
// dispatch correctness.
type AnalyticsSink interface {
	RecordReminder(ctx context.Context, cause engine.Cause, day time.Time)
}

// MetricsSink records coordinator metrics. All methods must be
// non-blocking and fire-and-forget.
type MetricsSink interface {
	EligibleJob(cause string)
	MailOutcome(outcome string)
	UpdateError()
	RemindersSent(count int)
}

// Candidate pairs a job with the decision that made it eligible.
type Candidate struct {
	Job      domain.Job
	Decision engine.Decision
}

// Coordinator iterates the job set, bundles every newly eligible job into
// a single digest, and updates bookkeeping only after the send succeeds.
type Coordinator struct {
	engine    *engine.Engine
	store     Store
	mail      MailSender
	emailCfg  EmailConfigSource
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled
}

// New creates a Coordinator.
func New(eng *engine.Engine, store Store, mail MailSender, emailCfg EmailConfigSource) *Coordinator {
	return &Coordinator{
		engine:   eng,
		store:    store,
		mail:     mail,
		emailCfg: emailCfg,
	}
}

// WithAnalytics attaches an analytics sink.
func (c *Coordinator) WithAnalytics(sink AnalyticsSink) *Coordinator {
	c.analytics = sink
	return c
}

// WithMetrics attaches a metrics sink.
func (c *Coordinator) WithMetrics(sink MetricsSink) *Coordinator {
	c.metrics = sink
	return c
}

// Run evaluates every job and dispatches one digest for those eligible.
// jobs must already exclude completed records (the store query does), but
// the engine re-checks status anyway.
func (c *Coordinator) Run(ctx context.Context, jobs []domain.Job, now civil.Time) (domain.Report, error) {
	var candidates []Candidate
	for _, job := range jobs {
		decision := c.engine.Evaluate(job, now)
		if decision.Cause == engine.CauseNone {
			continue
		}
		if c.metrics != nil {
			c.metrics.EligibleJob(string(decision.Cause))
		}
		candidates = append(candidates, Candidate{Job: job, Decision: decision})
	}

	report, err := c.Dispatch(ctx, candidates, now)
	report.Processed = len(jobs)
	return report, err
}

// Dispatch sends one digest for the given candidates and updates each
// job's bookkeeping on success. A mail failure aborts the whole batch
// with no state mutated; the next poll retries. A per-job update failure
// after a successful send is logged and counted but does not roll back
// the email - a duplicate reminder beats a silently dropped one.
func (c *Coordinator) Dispatch(ctx context.Context, candidates []Candidate, now civil.Time) (domain.Report, error) {
	report := domain.Report{Eligible: len(candidates), Success: true}
	if len(candidates) == 0 {
		return report, nil
	}

	cfg, err := c.emailCfg.EmailConfig(ctx)
	if err != nil {
		report.Success = false
		return report, fmt.Errorf("email config: %w", err)
	}
	if !cfg.Complete() {
		report.Success = false
		return report, fmt.Errorf("email config incomplete (to=%q from=%q)", cfg.ToEmail, cfg.FromEmail)
	}

	entries := make([]DigestEntry, 0, len(candidates))
	for _, cand := range candidates {
		entries = append(entries, newDigestEntry(cand, now))
	}

	if err := c.mail.SendDigest(ctx, entries, cfg); err != nil {
		if c.metrics != nil {
			c.metrics.MailOutcome("failed")
		}
		report.Success = false
		return report, fmt.Errorf("send digest: %w", err)
	}
	if c.metrics != nil {
		c.metrics.MailOutcome("success")
	}

	sentAt := now.Wall()
	for _, cand := range candidates {
		increment := cand.Decision.Cause == engine.CauseOverdue
		if err := c.store.MarkReminded(ctx, cand.Job.ID, sentAt, increment); err != nil {
			// The email already went out; accepted at-least-once risk.
			log.Printf("dispatcher: job=%s mark reminded failed: %v", cand.Job.JobNumber, err)
			if c.metrics != nil {
				c.metrics.UpdateError()
			}
			report.Errors++
			continue
		}
		report.Sent++
		log.Printf("dispatcher: job=%s reminded cause=%s", cand.Job.JobNumber, cand.Decision)

		if c.analytics != nil {
			c.analytics.RecordReminder(ctx, cand.Decision.Cause, now.Date())
		}
	}
	if c.metrics != nil {
		c.metrics.RemindersSent(report.Sent)
	}

	return report, nil
}
