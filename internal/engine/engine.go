// Package engine decides, for a single job record and a civil timestamp,
// whether a reminder is due right now.
//
// Evaluation is a pure function over (job, now): no I/O, no wall clock.
// The priority order is fixed and short-circuits, so a job is never
// matched for two causes in the same pass - snooze state always wins
// over deadline state.
package engine

import (
	"fmt"

	"github.com/flycast-tech/jobremind/internal/civil"
	"github.com/flycast-tech/jobremind/internal/domain"
)

// Cause identifies why a reminder fires. Values are stable strings used
// as metric labels and analytics keys.
type Cause string

const (
	CauseNone          Cause = "none"
	CauseOverdue       Cause = "overdue"
	CauseDueTomorrow   Cause = "due_tomorrow"
	CauseSnoozeExpired Cause = "snooze_expired"

	// CauseManual marks an operator-initiated send through the API. It
	// never increments the overdue escalation count.
	CauseManual Cause = "manual"
)

// Reason codes for CauseNone decisions.
const (
	ReasonCompleted           = "completed"
	ReasonSnoozed             = "snoozed"
	ReasonBadDeadline         = "bad_deadline"
	ReasonMilestonesExhausted = "milestones_exhausted"
	ReasonBeforeMilestone     = "before_milestone"
	ReasonOutsideWindow       = "outside_window"
	ReasonAlreadySent         = "already_sent_today"
	ReasonNotDue              = "not_due"
)

// Decision is the outcome of evaluating one job. Milestone is only
// meaningful for CauseOverdue; Reason is only set for CauseNone.
type Decision struct {
	Cause     Cause
	Milestone int
	Reason    string
}

func none(reason string) Decision {
	return Decision{Cause: CauseNone, Reason: reason}
}

// Config holds the escalation policy and send window.
type Config struct {
	// Milestones are day-counts past the deadline at which escalating
	// overdue reminders fire, in ascending order. Their length caps
	// OverdueReminderCount.
	Milestones []int

	// WindowHour and WindowSlackMinutes define the daily send window:
	// hour == WindowHour and minute in [0, WindowSlackMinutes]. The slack
	// matches the poll interval so the boundary cannot fall between polls.
	// A WindowHour of 0 means unset; a midnight window is not supported.
	WindowHour         int
	WindowSlackMinutes int
}

// DefaultConfig returns the reference policy: escalate at 2, 5 and 8 days
// overdue, inside the 09:00-09:04 civil window.
func DefaultConfig() Config {
	return Config{
		Milestones:         []int{2, 5, 8},
		WindowHour:         9,
		WindowSlackMinutes: 4,
	}
}

// Engine evaluates reminder eligibility under a fixed Config.
type Engine struct {
	config Config
}

// New creates an Engine. Zero-value config fields fall back to defaults.
func New(config Config) *Engine {
	def := DefaultConfig()
	if len(config.Milestones) == 0 {
		config.Milestones = def.Milestones
	}
	if config.WindowHour == 0 {
		config.WindowHour = def.WindowHour
	}
	if config.WindowSlackMinutes == 0 {
		config.WindowSlackMinutes = def.WindowSlackMinutes
	}
	return &Engine{config: config}
}

// Milestones returns the configured escalation day-counts.
func (e *Engine) Milestones() []int {
	return e.config.Milestones
}

// Evaluate returns the reminder decision for job at the given civil time.
// First match wins:
//
//  1. Completed jobs are terminal.
//  2. An unexpired snooze suppresses everything, even overdue state.
//  3. An expired snooze fires immediately, any time of day.
//  4. Overdue jobs fire at the next unacknowledged milestone, window-gated
//     and at most once per civil day.
//  5. Jobs due tomorrow fire once per civil day, window-gated.
func (e *Engine) Evaluate(job domain.Job, now civil.Time) Decision {
	if job.Status == domain.StatusCompleted {
		return none(ReasonCompleted)
	}

	if job.SnoozeExpiresAt != nil {
		if job.SnoozeExpiresAt.After(now.Wall()) {
			return none(ReasonSnoozed)
		}
		return Decision{Cause: CauseSnoozeExpired}
	}

	deadline, err := civil.ParseDate(job.ProductionDeadline)
	if err != nil {
		// One bad record must not block the batch (or panic the run).
		return none(ReasonBadDeadline)
	}

	daysOverdue := civil.DaysBetween(deadline, now.Date())
	if daysOverdue > 0 {
		if job.OverdueReminderCount >= len(e.config.Milestones) {
			return none(ReasonMilestonesExhausted)
		}
		next := e.config.Milestones[job.OverdueReminderCount]
		if daysOverdue < next {
			return none(ReasonBeforeMilestone)
		}
		if !e.InWindow(now) {
			return none(ReasonOutsideWindow)
		}
		if sentToday(job, now) {
			return none(ReasonAlreadySent)
		}
		return Decision{Cause: CauseOverdue, Milestone: job.OverdueReminderCount}
	}

	if civil.SameDay(deadline, now.Tomorrow()) {
		if !e.InWindow(now) {
			return none(ReasonOutsideWindow)
		}
		if sentToday(job, now) {
			return none(ReasonAlreadySent)
		}
		return Decision{Cause: CauseDueTomorrow}
	}

	return none(ReasonNotDue)
}

// InWindow reports whether now falls inside the daily send window.
func (e *Engine) InWindow(now civil.Time) bool {
	return now.Hour() == e.config.WindowHour && now.Minute() <= e.config.WindowSlackMinutes
}

// WindowPassed reports whether today's send window is already over. The
// missed-reminder sweep uses this to tell "not yet" from "was skipped".
func (e *Engine) WindowPassed(now civil.Time) bool {
	if now.Hour() != e.config.WindowHour {
		return now.Hour() > e.config.WindowHour
	}
	return now.Minute() > e.config.WindowSlackMinutes
}

// sentToday reports whether the job was already reminded on the current
// civil date. Same-day dedupe derives from the timestamp, not from the
// ReminderSent flag, so it resets naturally with the passage of days.
func sentToday(job domain.Job, now civil.Time) bool {
	return job.LastReminderSentAt != nil && civil.SameDay(*job.LastReminderSentAt, now.Wall())
}

// String renders a decision for logs.
func (d Decision) String() string {
	switch d.Cause {
	case CauseOverdue:
		return fmt.Sprintf("overdue(milestone=%d)", d.Milestone)
	case CauseNone:
		return "none(" + d.Reason + ")"
	default:
		return string(d.Cause)
	}
}
