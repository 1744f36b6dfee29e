package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Trigger shell metrics
	RunStarted()
	RunCompleted(duration time.Duration, processed, sent int, err error)
	RunSkipped(reason string)

	// Dispatch metrics
	EligibleJob(cause string)
	MailOutcome(outcome string)
	UpdateError()
	RemindersSent(count int)

	// Sweep metrics
	MissedFound(count int)
}

// Outcome constants for the MailOutcome metric.
const (
	MailOutcomeSuccess = "success"
	MailOutcomeFailed  = "failed"
)

// Skip reason constants for the RunSkipped metric.
const (
	SkipLockContention = "lock_contention"
)
