package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Trigger shell metrics
	runsTotal        prometheus.Counter
	runErrorsTotal   prometheus.Counter
	runsSkippedTotal *prometheus.CounterVec
	runDuration      prometheus.Histogram

	// Dispatch metrics
	eligibleJobsTotal  *prometheus.CounterVec
	mailOutcomesTotal  *prometheus.CounterVec
	updateErrorsTotal  prometheus.Counter
	remindersSentTotal prometheus.Counter

	// Sweep metrics
	sweepMissedJobs prometheus.Gauge
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// Metrics that fail to register log a warning and keep working unregistered.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initRunMetrics(reg)
	s.initDispatchMetrics(reg)
	s.initSweepMetrics(reg)
	return s
}

func (s *PrometheusSink) initRunMetrics(reg prometheus.Registerer) {
	s.runsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobremind_runs_total",
		Help: "Total number of reminder runs started.",
	})
	s.runErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobremind_run_errors_total",
		Help: "Total number of reminder runs that ended in error.",
	})
	s.runsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobremind_runs_skipped_total",
		Help: "Total number of reminder runs skipped, by reason.",
	}, []string{"reason"})
	s.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "jobremind_run_duration_seconds",
		Help:    "Duration of each reminder run in seconds.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	s.register(reg, s.runsTotal, "jobremind_runs_total")
	s.register(reg, s.runErrorsTotal, "jobremind_run_errors_total")
	s.register(reg, s.runsSkippedTotal, "jobremind_runs_skipped_total")
	s.register(reg, s.runDuration, "jobremind_run_duration_seconds")
}

func (s *PrometheusSink) initDispatchMetrics(reg prometheus.Registerer) {
	s.eligibleJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobremind_eligible_jobs_total",
		Help: "Total number of jobs found eligible for a reminder, by cause.",
	}, []string{"cause"})

	s.mailOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobremind_mail_outcomes_total",
		Help: "Total number of digest mail attempts, by outcome.",
	}, []string{"outcome"})

	s.updateErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobremind_update_errors_total",
		Help: "Total number of per-job bookkeeping update failures after a sent digest.",
	})

	s.remindersSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobremind_reminders_sent_total",
		Help: "Total number of job reminders delivered.",
	})

	s.register(reg, s.eligibleJobsTotal, "jobremind_eligible_jobs_total")
	s.register(reg, s.mailOutcomesTotal, "jobremind_mail_outcomes_total")
	s.register(reg, s.updateErrorsTotal, "jobremind_update_errors_total")
	s.register(reg, s.remindersSentTotal, "jobremind_reminders_sent_total")
}

func (s *PrometheusSink) initSweepMetrics(reg prometheus.Registerer) {
	s.sweepMissedJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobremind_sweep_missed_jobs",
		Help: "Number of missed-reminder jobs found by the most recent sweep.",
	})

	s.register(reg, s.sweepMissedJobs, "jobremind_sweep_missed_jobs")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Trigger shell metrics implementation

func (s *PrometheusSink) RunStarted() {
	s.runsTotal.Inc()
}

func (s *PrometheusSink) RunCompleted(duration time.Duration, processed, sent int, err error) {
	s.runDuration.Observe(duration.Seconds())
	if err != nil {
		s.runErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) RunSkipped(reason string) {
	s.runsSkippedTotal.WithLabelValues(reason).Inc()
}

// Dispatch metrics implementation

func (s *PrometheusSink) EligibleJob(cause string) {
	s.eligibleJobsTotal.WithLabelValues(cause).Inc()
}

func (s *PrometheusSink) MailOutcome(outcome string) {
	s.mailOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) UpdateError() {
	s.updateErrorsTotal.Inc()
}

func (s *PrometheusSink) RemindersSent(count int) {
	s.remindersSentTotal.Add(float64(count))
}

// Sweep metrics implementation

func (s *PrometheusSink) MissedFound(count int) {
	s.sweepMissedJobs.Set(float64(count))
}

var _ Sink = (*PrometheusSink)(nil)
