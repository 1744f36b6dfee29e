package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	// POLL_SCHEDULE must be a valid five-field cron expression
	if cfg.PollSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.PollSchedule); err != nil {
			errs = append(errs, ValidationError{
				Field:   "POLL_SCHEDULE",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	// DB_OP_TIMEOUT must be a valid positive duration
	if cfg.DBOpTimeoutStr != "" {
		d, err := time.ParseDuration(cfg.DBOpTimeoutStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "DB_OP_TIMEOUT",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "DB_OP_TIMEOUT",
				Message: "must be positive",
			})
		}
	}

	// SWEEP_INTERVAL must be a valid positive duration
	if cfg.SweepIntervalStr != "" {
		d, err := time.ParseDuration(cfg.SweepIntervalStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "SWEEP_INTERVAL",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "SWEEP_INTERVAL",
				Message: "must be positive",
			})
		}
	}

	// OVERDUE_MILESTONES must parse to positive integers
	if cfg.MilestonesStr != "" {
		if _, err := ParseMilestones(cfg.MilestonesStr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "OVERDUE_MILESTONES",
				Message: fmt.Sprintf("must be comma-separated positive integers, got %q", cfg.MilestonesStr),
			})
		}
	}

	// REMINDER_WINDOW_HOUR must be an hour of day. Hour 0 is rejected:
	// the engine treats a zero window hour as unset, so a midnight
	// window would silently become the default.
	if cfg.ReminderWindowHour < 1 || cfg.ReminderWindowHour > 23 {
		errs = append(errs, ValidationError{
			Field:   "REMINDER_WINDOW_HOUR",
			Message: fmt.Sprintf("must be between 1 and 23, got %d", cfg.ReminderWindowHour),
		})
	}

	// SMTP_PORT must be a valid port
	if cfg.SMTPPort < 1 || cfg.SMTPPort > 65535 {
		errs = append(errs, ValidationError{
			Field:   "SMTP_PORT",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.SMTPPort),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
