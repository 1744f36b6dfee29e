package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flycast-tech/jobremind/internal/civil"
	"github.com/flycast-tech/jobremind/internal/domain"
	"github.com/flycast-tech/jobremind/internal/engine"
)

// mockStore tracks MarkReminded calls and can fail selected jobs.
type mockStore struct {
	mu      sync.Mutex
	marked  map[uuid.UUID]markCall
	failFor map[uuid.UUID]error
}

type markCall struct {
	sentAt           time.Time
	incrementOverdue bool
}

func newMockStore() *mockStore {
	return &mockStore{
		marked:  make(map[uuid.UUID]markCall),
		failFor: make(map[uuid.UUID]error),
	}
}

func (s *mockStore) MarkReminded(ctx context.Context, jobID uuid.UUID, sentAt time.Time, incrementOverdue bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[jobID]; ok {
		return err
	}
	s.marked[jobID] = markCall{sentAt: sentAt, incrementOverdue: incrementOverdue}
	return nil
}

func (s *mockStore) markedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.marked)
}

// mockMailer records digests and optionally fails.
type mockMailer struct {
	mu      sync.Mutex
	digests [][]DigestEntry
	err     error
}

func (m *mockMailer) SendDigest(ctx context.Context, entries []DigestEntry, cfg domain.EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.digests = append(m.digests, entries)
	return nil
}

func (m *mockMailer) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.digests)
}

var testEmailConfig = StaticEmailConfig{Config: domain.EmailConfig{
	ToEmail:      "ops@flycast.example",
	FromEmail:    "reminders@flycast.example",
	FromPassword: "app-password",
	Configured:   true,
}}

// testNow is 09:02 civil on 2025-03-10.
var testNow = civil.At(time.Date(2025, 3, 10, 9, 2, 0, 0, civil.Location))

func newJob(number, deadline string) domain.Job {
	return domain.Job{
		ID:                 uuid.New(),
		JobNumber:          number,
		ClientName:         "Acme Print Co",
		ProductionDeadline: deadline,
		Status:             "In Production",
	}
}

func newCoordinator(store Store, mail MailSender) *Coordinator {
	return New(engine.New(engine.DefaultConfig()), store, mail, testEmailConfig)
}

func TestRun_BundlesEligibleJobsIntoOneDigest(t *testing.T) {
	store := newMockStore()
	mailer := &mockMailer{}
	coord := newCoordinator(store, mailer)

	past := testNow.Wall().Add(-10 * time.Minute)
	snoozed := newJob("JOB-3", "2025-03-20")
	snoozed.SnoozeExpiresAt = &past

	jobs := []domain.Job{
		newJob("JOB-1", "2025-03-11"), // due tomorrow
		newJob("JOB-2", "2025-03-07"), // 3 days overdue, milestone 2 met
		snoozed,                       // snooze expired
		newJob("JOB-4", "2025-03-25"), // not due
	}

	report, err := coord.Run(context.Background(), jobs, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Processed != 4 || report.Eligible != 3 || report.Sent != 3 || report.Errors != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if mailer.sendCount() != 1 {
		t.Fatalf("expected exactly one digest, got %d", mailer.sendCount())
	}
	if got := len(mailer.digests[0]); got != 3 {
		t.Errorf("expected 3 entries in digest, got %d", got)
	}
	if store.markedCount() != 3 {
		t.Errorf("expected 3 jobs marked, got %d", store.markedCount())
	}
}

func TestRun_NoEligibleJobsSendsNothing(t *testing.T) {
	store := newMockStore()
	mailer := &mockMailer{}
	coord := newCoordinator(store, mailer)

	jobs := []domain.Job{newJob("JOB-1", "2025-03-25")}

	report, err := coord.Run(context.Background(), jobs, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Eligible != 0 || mailer.sendCount() != 0 || store.markedCount() != 0 {
		t.Errorf("expected a no-op run, got report=%+v sends=%d marks=%d",
			report, mailer.sendCount(), store.markedCount())
	}
}

func TestDispatch_MailFailureMutatesNothing(t *testing.T) {
	store := newMockStore()
	mailer := &mockMailer{err: errors.New("smtp: connection refused")}
	coord := newCoordinator(store, mailer)

	jobs := []domain.Job{
		newJob("JOB-1", "2025-03-11"),
		newJob("JOB-2", "2025-03-07"),
	}

	report, err := coord.Run(context.Background(), jobs, testNow)
	if err == nil {
		t.Fatal("expected error from mail failure")
	}
	if report.Success {
		t.Error("expected report.Success=false")
	}
	if store.markedCount() != 0 {
		t.Errorf("batch atomicity violated: %d jobs marked after mail failure", store.markedCount())
	}
}

func TestDispatch_PerJobUpdateFailureContinues(t *testing.T) {
	store := newMockStore()
	mailer := &mockMailer{}
	coord := newCoordinator(store, mailer)

	bad := newJob("JOB-1", "2025-03-11")
	good := newJob("JOB-2", "2025-03-11")
	store.failFor[bad.ID] = errors.New("row locked")

	report, err := coord.Run(context.Background(), []domain.Job{bad, good}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Sent != 1 || report.Errors != 1 {
		t.Errorf("expected sent=1 errors=1, got %+v", report)
	}
	if _, ok := store.marked[good.ID]; !ok {
		t.Error("expected surviving job to be marked")
	}
}

func TestDispatch_OverdueIncrementsCountOthersDoNot(t *testing.T) {
	store := newMockStore()
	mailer := &mockMailer{}
	coord := newCoordinator(store, mailer)

	overdue := newJob("JOB-1", "2025-03-07")
	tomorrow := newJob("JOB-2", "2025-03-11")

	if _, err := coord.Run(context.Background(), []domain.Job{overdue, tomorrow}, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !store.marked[overdue.ID].incrementOverdue {
		t.Error("expected overdue dispatch to increment the escalation count")
	}
	if store.marked[tomorrow.ID].incrementOverdue {
		t.Error("due-tomorrow dispatch must not touch the escalation count")
	}
}

func TestDispatch_IncompleteEmailConfigAborts(t *testing.T) {
	store := newMockStore()
	mailer := &mockMailer{}
	coord := New(engine.New(engine.DefaultConfig()), store, mailer,
		StaticEmailConfig{Config: domain.EmailConfig{ToEmail: "ops@flycast.example"}})

	_, err := coord.Run(context.Background(), []domain.Job{newJob("JOB-1", "2025-03-11")}, testNow)
	if err == nil {
		t.Fatal("expected error for incomplete email config")
	}
	if mailer.sendCount() != 0 {
		t.Error("must not attempt a send without credentials")
	}
}

func TestBuildDigest_SubjectAndCounts(t *testing.T) {
	entries := []DigestEntry{
		newDigestEntry(Candidate{Job: newJob("JOB-1", "2025-03-07"), Decision: engine.Decision{Cause: engine.CauseOverdue}}, testNow),
		newDigestEntry(Candidate{Job: newJob("JOB-2", "2025-03-11"), Decision: engine.Decision{Cause: engine.CauseDueTomorrow}}, testNow),
	}

	subject, body, err := buildDigest(entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Job Reminder: 2 Jobs OVERDUE" {
		t.Errorf("unexpected subject: %q", subject)
	}
	for _, want := range []string{"JOB-1", "JOB-2", "07-Mar-2025", "3 days overdue", "1 day remaining"} {
		if !strings.Contains(body, want) {
			t.Errorf("digest body missing %q", want)
		}
	}
}

func TestNewDigestEntry_UrgencyBands(t *testing.T) {
	cases := []struct {
		deadline string
		want     string
	}{
		{"2025-03-07", "OVERDUE"},
		{"2025-03-10", "DUE TODAY"},
		{"2025-03-11", "URGENT"},
		{"2025-03-12", "URGENT"},
		{"2025-03-20", "ON TRACK"},
	}
	for _, tc := range cases {
		entry := newDigestEntry(Candidate{Job: newJob("J", tc.deadline)}, testNow)
		if entry.UrgencyText != tc.want {
			t.Errorf("deadline %s: expected %s, got %s", tc.deadline, tc.want, entry.UrgencyText)
		}
	}
}

func TestFallbackEmailConfig(t *testing.T) {
	primary := StaticEmailConfig{Config: domain.EmailConfig{}}
	secondary := testEmailConfig

	cfg, err := FallbackEmailConfig{Primary: primary, Secondary: secondary}.EmailConfig(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FromEmail != testEmailConfig.Config.FromEmail {
		t.Errorf("expected fallback to secondary config, got %+v", cfg)
	}

	cfg, err = FallbackEmailConfig{Primary: secondary, Secondary: primary}.EmailConfig(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FromEmail != testEmailConfig.Config.FromEmail {
		t.Errorf("expected primary config when complete, got %+v", cfg)
	}
}
