package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/jobremind",
		PollSchedule:       "*/5 * * * *",
		DBOpTimeoutStr:     "5s",
		SweepIntervalStr:   "1h",
		MilestonesStr:      "2,5,8",
		ReminderWindowHour: 9,
		SMTPPort:           587,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("valid config should not return error, got: %v", err)
	}
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error should mention DATABASE_URL: %q", err.Error())
	}
}

func TestValidate_InvalidPollSchedule(t *testing.T) {
	for _, expr := range []string{"not cron", "61 * * * *", "* * * *"} {
		cfg := validConfig()
		cfg.PollSchedule = expr

		err := Validate(cfg)
		if err == nil {
			t.Errorf("expected error for POLL_SCHEDULE=%q", expr)
			continue
		}
		if !strings.Contains(err.Error(), "POLL_SCHEDULE") {
			t.Errorf("error should mention POLL_SCHEDULE: %q", err.Error())
		}
	}
}

func TestValidate_InvalidDurations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad op timeout", func(c *Config) { c.DBOpTimeoutStr = "soon" }, "invalid duration"},
		{"negative op timeout", func(c *Config) { c.DBOpTimeoutStr = "-1s" }, "must be positive"},
		{"bad sweep interval", func(c *Config) { c.SweepIntervalStr = "hourly" }, "invalid duration"},
		{"zero sweep interval", func(c *Config) { c.SweepIntervalStr = "0s" }, "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_InvalidMilestones(t *testing.T) {
	cfg := validConfig()
	cfg.MilestonesStr = "2,x,8"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "OVERDUE_MILESTONES") {
		t.Errorf("expected OVERDUE_MILESTONES error, got %v", err)
	}
}

func TestValidate_InvalidWindowHour(t *testing.T) {
	for _, hour := range []int{-1, 0, 24, 99} {
		cfg := validConfig()
		cfg.ReminderWindowHour = hour

		err := Validate(cfg)
		if err == nil || !strings.Contains(err.Error(), "REMINDER_WINDOW_HOUR") {
			t.Errorf("hour %d: expected REMINDER_WINDOW_HOUR error, got %v", hour, err)
		}
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.PollSchedule = "bogus"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(errs) != 2 {
		t.Errorf("expected 2 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "DATABASE_URL", Message: "required"}
	if err.Error() != "DATABASE_URL: required" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestValidationErrors_Format(t *testing.T) {
	single := ValidationErrors{{Field: "F1", Message: "M1"}}
	if single.Error() != "F1: M1" {
		t.Errorf("single error = %q, want 'F1: M1'", single.Error())
	}

	multi := ValidationErrors{
		{Field: "F1", Message: "M1"},
		{Field: "F2", Message: "M2"},
	}
	got := multi.Error()
	if !strings.Contains(got, "2 validation errors") {
		t.Errorf("multi error should contain '2 validation errors': %q", got)
	}

	empty := ValidationErrors{}
	if empty.Error() != "" {
		t.Errorf("empty errors should return empty string, got %q", empty.Error())
	}
}
