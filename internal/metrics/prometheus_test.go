package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusSink(reg), reg
}

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsMatch(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestPrometheusSink_Runs(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.RunStarted()
	sink.RunStarted()
	sink.RunCompleted(200*time.Millisecond, 10, 3, nil)
	sink.RunCompleted(50*time.Millisecond, 0, 0, errors.New("mail down"))
	sink.RunSkipped(SkipLockContention)

	if got := gatherValue(t, reg, "jobremind_runs_total", nil); got != 2 {
		t.Errorf("runs_total = %v, want 2", got)
	}
	if got := gatherValue(t, reg, "jobremind_run_errors_total", nil); got != 1 {
		t.Errorf("run_errors_total = %v, want 1", got)
	}
	if got := gatherValue(t, reg, "jobremind_runs_skipped_total", map[string]string{"reason": SkipLockContention}); got != 1 {
		t.Errorf("runs_skipped_total{lock_contention} = %v, want 1", got)
	}
}

func TestPrometheusSink_Dispatch(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.EligibleJob("overdue")
	sink.EligibleJob("overdue")
	sink.EligibleJob("due_tomorrow")
	sink.MailOutcome(MailOutcomeSuccess)
	sink.MailOutcome(MailOutcomeFailed)
	sink.UpdateError()
	sink.RemindersSent(3)

	if got := gatherValue(t, reg, "jobremind_eligible_jobs_total", map[string]string{"cause": "overdue"}); got != 2 {
		t.Errorf("eligible_jobs_total{overdue} = %v, want 2", got)
	}
	if got := gatherValue(t, reg, "jobremind_mail_outcomes_total", map[string]string{"outcome": MailOutcomeFailed}); got != 1 {
		t.Errorf("mail_outcomes_total{failed} = %v, want 1", got)
	}
	if got := gatherValue(t, reg, "jobremind_update_errors_total", nil); got != 1 {
		t.Errorf("update_errors_total = %v, want 1", got)
	}
	if got := gatherValue(t, reg, "jobremind_reminders_sent_total", nil); got != 3 {
		t.Errorf("reminders_sent_total = %v, want 3", got)
	}
}

func TestPrometheusSink_SweepGauge(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.MissedFound(4)
	sink.MissedFound(1)

	if got := gatherValue(t, reg, "jobremind_sweep_missed_jobs", nil); got != 1 {
		t.Errorf("sweep_missed_jobs = %v, want last value 1", got)
	}
}

func TestPrometheusSink_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusSink(reg)
	// A second sink on the same registry logs registration failures but
	// must still be usable.
	sink := NewPrometheusSink(reg)
	sink.RunStarted()
	sink.EligibleJob("overdue")
}
