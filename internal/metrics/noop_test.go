package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	// Verify that calling all methods on NoopSink does not panic.
	s := NewNoopSink()

	s.RunStarted()
	s.RunCompleted(100*time.Millisecond, 5, 2, nil)
	s.RunCompleted(100*time.Millisecond, 0, 0, errors.New("boom"))
	s.RunSkipped(SkipLockContention)

	s.EligibleJob("overdue")
	s.MailOutcome(MailOutcomeSuccess)
	s.MailOutcome(MailOutcomeFailed)
	s.UpdateError()
	s.RemindersSent(2)

	s.MissedFound(3)
}

// Verify NoopSink implements Sink interface.
var _ Sink = (*NoopSink)(nil)
