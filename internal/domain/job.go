package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusCompleted is the single terminal status value. A completed job is
// permanently excluded from reminder eligibility; every other status string
// is treated as active.
const StatusCompleted = "Completed"

// Job is the central entity: one production job pasted into the dashboard.
// Deadline fields are civil calendar dates serialized as "YYYY-MM-DD";
// parsing happens at the evaluation boundary so one malformed record can
// never take down a whole run.
type Job struct {
	ID         uuid.UUID
	JobNumber  string
	ClientName string

	ForwardingDate     string
	ProductionDeadline string

	Status string

	// Reminder bookkeeping, mutated only by the dispatch coordinator.
	ReminderSent         bool
	SnoozeExpiresAt      *time.Time
	LastReminderSentAt   *time.Time
	OverdueReminderCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the job participates in reminder evaluation.
func (j Job) Active() bool {
	return j.Status != StatusCompleted
}
