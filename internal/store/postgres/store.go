// Package postgres implements the job store on PostgreSQL via lib/pq.
// Column names are snake_case; the mapping to domain structs happens
// only in this package.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/flycast-tech/jobremind/internal/api"
	"github.com/flycast-tech/jobremind/internal/dispatcher"
	"github.com/flycast-tech/jobremind/internal/domain"
	"github.com/flycast-tech/jobremind/internal/scheduler"
	"github.com/flycast-tech/jobremind/internal/sweep"
)

// Store implements the job and email-config persistence used by the
// scheduler, dispatcher, sweep and API layers.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a store. opTimeout bounds each database operation; zero
// disables the per-op deadline.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// GetActiveJobs returns every job that is not Completed, ordered by
// deadline. Completed jobs are excluded at the query level so they can
// never re-enter evaluation.
func (s *Store) GetActiveJobs(ctx context.Context) ([]domain.Job, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryGetActiveJobs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// MarkReminded records a sent reminder in a single atomic update:
// reminder_sent flips on, the sent timestamp lands, any snooze clears,
// and the overdue counter bumps when the send consumed a milestone.
// Returns sql.ErrNoRows if the job no longer exists.
func (s *Store) MarkReminded(ctx context.Context, jobID uuid.UUID, sentAt time.Time, incrementOverdue bool) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	increment := 0
	if incrementOverdue {
		increment = 1
	}

	result, err := s.db.ExecContext(ctx, queryMarkReminded, jobID, sentAt, increment)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InsertJob inserts a new job row.
// Returns domain.ErrDuplicateJobNumber if the job number is taken.
func (s *Store) InsertJob(ctx context.Context, job domain.Job) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryInsertJob,
		job.ID,
		job.JobNumber,
		job.ClientName,
		job.ForwardingDate,
		job.ProductionDeadline,
		job.Status,
		job.ReminderSent,
		nullableTime(job.SnoozeExpiresAt),
		nullableTime(job.LastReminderSentAt),
		job.OverdueReminderCount,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicateJobNumber
		}
		return err
	}
	return nil
}

// GetJobByNumber returns a job by its business key.
func (s *Store) GetJobByNumber(ctx context.Context, jobNumber string) (domain.Job, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, queryGetJobByNumber, jobNumber)
	return scanJob(row)
}

// ListJobs returns jobs newest-first, paginated by limit and offset.
func (s *Store) ListJobs(ctx context.Context, limit, offset int) ([]domain.Job, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListJobs, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteJob removes a job by its business key.
// Returns sql.ErrNoRows if no such job exists.
func (s *Store) DeleteJob(ctx context.Context, jobNumber string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var deletedID uuid.UUID
	err := s.db.QueryRowContext(ctx, queryDeleteJob, jobNumber).Scan(&deletedID)
	if err != nil {
		return err
	}
	return nil
}

// EmailConfig returns the stored digest recipient and SMTP credentials.
// A missing row is not an error: it reads as an unconfigured config.
func (s *Store) EmailConfig(ctx context.Context) (domain.EmailConfig, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var cfg domain.EmailConfig
	err := s.db.QueryRowContext(ctx, queryGetEmailConfig).Scan(&cfg.ToEmail, &cfg.FromEmail, &cfg.FromPassword)
	if err == sql.ErrNoRows {
		return domain.EmailConfig{}, nil
	}
	if err != nil {
		return domain.EmailConfig{}, err
	}
	cfg.Configured = true
	return cfg, nil
}

// SaveEmailConfig upserts the single email configuration row.
func (s *Store) SaveEmailConfig(ctx context.Context, cfg domain.EmailConfig, now time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, querySaveEmailConfig, cfg.ToEmail, cfg.FromEmail, cfg.FromPassword, now)
	return err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (domain.Job, error) {
	var job domain.Job
	var snoozeExpiresAt, lastReminderSentAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.JobNumber,
		&job.ClientName,
		&job.ForwardingDate,
		&job.ProductionDeadline,
		&job.Status,
		&job.ReminderSent,
		&snoozeExpiresAt,
		&lastReminderSentAt,
		&job.OverdueReminderCount,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}

	if snoozeExpiresAt.Valid {
		t := snoozeExpiresAt.Time
		job.SnoozeExpiresAt = &t
	}
	if lastReminderSentAt.Valid {
		t := lastReminderSentAt.Time
		job.LastReminderSentAt = &t
	}
	return job, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	// PostgreSQL unique violation error code is 23505.
	errStr := err.Error()
	return containsStr(errStr, "23505") || containsStr(errStr, "unique constraint") || containsStr(errStr, "duplicate key")
}

func containsStr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Compile-time interface assertions
var (
	_ scheduler.Store              = (*Store)(nil)
	_ sweep.Store                  = (*Store)(nil)
	_ dispatcher.Store             = (*Store)(nil)
	_ dispatcher.EmailConfigSource = (*Store)(nil)
	_ api.Store                    = (*Store)(nil)
)
