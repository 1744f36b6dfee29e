package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flycast-tech/jobremind/internal/civil"
	"github.com/flycast-tech/jobremind/internal/domain"
	"github.com/flycast-tech/jobremind/internal/testutil"
)

type mockStore struct {
	jobs []domain.Job
	err  error
}

func (s *mockStore) GetActiveJobs(ctx context.Context) ([]domain.Job, error) {
	return s.jobs, s.err
}

type mockCoordinator struct {
	mu     sync.Mutex
	runs   int
	report domain.Report
	err    error
}

func (c *mockCoordinator) Run(ctx context.Context, jobs []domain.Job, now civil.Time) (domain.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	report := c.report
	report.Processed = len(jobs)
	return report, c.err
}

func (c *mockCoordinator) runCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

type mockLease struct {
	released bool
}

func (l *mockLease) Release(ctx context.Context) error {
	l.released = true
	return nil
}

type mockLocker struct {
	held  bool
	err   error
	lease *mockLease
}

func (m *mockLocker) Acquire(ctx context.Context) (Lease, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	if m.held {
		return nil, false, nil
	}
	m.lease = &mockLease{}
	return m.lease, true, nil
}

type recordedEvent struct {
	typ, message, level string
	data                map[string]any
}

type mockLogSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *mockLogSink) Event(ctx context.Context, typ, message string, data map[string]any, level string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{typ: typ, message: message, data: data, level: level})
}

// fixedSchedule fires every interval relative to the given time.
type fixedSchedule struct {
	interval time.Duration
}

func (s fixedSchedule) Next(after time.Time) time.Time {
	return after.Add(s.interval)
}

func TestRunNow_ReportsOutcome(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 3, 10, 4, 2, 0, 0, time.UTC))
	store := &mockStore{jobs: make([]domain.Job, 5)}
	coord := &mockCoordinator{report: domain.Report{Sent: 2, Success: true}}
	sink := &mockLogSink{}

	s := New(store, coord, fixedSchedule{time.Minute}).
		WithClock(clock.Now).
		WithLogSink(sink)

	report, err := s.RunNow(testutil.TestContext(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Processed != 5 || report.Sent != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(sink.events) != 1 || sink.events[0].level != "info" {
		t.Fatalf("expected one info event, got %v", sink.events)
	}
	if got := sink.events[0].data["totalSent"]; got != 2 {
		t.Errorf("expected totalSent=2 in event data, got %v", got)
	}
}

func TestRunNow_StoreErrorAborts(t *testing.T) {
	store := &mockStore{err: errors.New("timeout")}
	coord := &mockCoordinator{}
	sink := &mockLogSink{}

	s := New(store, coord, fixedSchedule{time.Minute}).WithLogSink(sink)

	if _, err := s.RunNow(testutil.TestContext(t)); err == nil {
		t.Fatal("expected store error to propagate")
	}
	if coord.runCount() != 0 {
		t.Error("coordinator must not run after a fetch failure")
	}
	if len(sink.events) != 1 || sink.events[0].typ != "error" {
		t.Errorf("expected one error event, got %v", sink.events)
	}
}

func TestRunNow_LockContentionSkips(t *testing.T) {
	store := &mockStore{jobs: make([]domain.Job, 3)}
	coord := &mockCoordinator{}

	s := New(store, coord, fixedSchedule{time.Minute}).
		WithLocker(&mockLocker{held: true})

	report, err := s.RunNow(testutil.TestContext(t))
	if err != nil {
		t.Fatalf("a contended lock is a skip, not an error: %v", err)
	}
	if !report.Success || report.Processed != 0 {
		t.Errorf("expected empty successful report, got %+v", report)
	}
	if coord.runCount() != 0 {
		t.Error("coordinator must not run without the lock")
	}
}

func TestRunNow_ReleasesLock(t *testing.T) {
	store := &mockStore{}
	coord := &mockCoordinator{report: domain.Report{Success: true}}
	locker := &mockLocker{}

	s := New(store, coord, fixedSchedule{time.Minute}).WithLocker(locker)

	if _, err := s.RunNow(testutil.TestContext(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locker.lease == nil || !locker.lease.released {
		t.Error("expected the run lock to be released")
	}
}

func TestRunNow_LockErrorPropagates(t *testing.T) {
	s := New(&mockStore{}, &mockCoordinator{}, fixedSchedule{time.Minute}).
		WithLocker(&mockLocker{err: errors.New("connection refused")})

	if _, err := s.RunNow(testutil.TestContext(t)); err == nil {
		t.Fatal("expected lock acquisition error to propagate")
	}
}

func TestRun_FiresOnCadenceUntilCancelled(t *testing.T) {
	store := &mockStore{}
	coord := &mockCoordinator{report: domain.Report{Success: true}}

	s := New(store, coord, fixedSchedule{10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for coord.runCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("scheduler never fired twice")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
