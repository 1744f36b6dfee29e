package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) RunStarted()                                                  {}
func (n *NoopSink) RunCompleted(d time.Duration, processed, sent int, err error) {}
func (n *NoopSink) RunSkipped(reason string)                                     {}
func (n *NoopSink) EligibleJob(cause string)                                     {}
func (n *NoopSink) MailOutcome(outcome string)                                   {}
func (n *NoopSink) UpdateError()                                                 {}
func (n *NoopSink) RemindersSent(count int)                                      {}
func (n *NoopSink) MissedFound(count int)                                        {}
