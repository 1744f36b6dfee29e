// Package config loads jobremind configuration from environment
// variables. A .env file in the working directory is honored when
// present.
package config

import (
	"encoding/json"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the jobremind application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`

	// PollSchedule is a five-field cron expression evaluated in the
	// civil timezone.
	PollSchedule string `json:"poll_schedule"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	SweepEnabled     bool          `json:"sweep_enabled"`
	SweepInterval    time.Duration `json:"-"`
	SweepIntervalStr string        `json:"sweep_interval"`

	DiscordWebhookURL string `json:"discord_webhook_url,omitempty"`

	SMTPHost string `json:"smtp_host"`
	SMTPPort int    `json:"smtp_port"`

	// Env-level fallback for the digest recipient and sender. The
	// database row, when present, wins.
	ReminderToEmail      string `json:"reminder_to_email,omitempty"`
	ReminderFromEmail    string `json:"reminder_from_email,omitempty"`
	ReminderFromPassword string `json:"-"`

	Milestones    []int  `json:"-"`
	MilestonesStr string `json:"overdue_milestones"`

	ReminderWindowHour int `json:"reminder_window_hour"`

	// RunLockKey: all instances sharing the same database must use the same key.
	RunLockKey int64 `json:"run_lock_key"`

	AnalyticsRetention    time.Duration `json:"-"`
	AnalyticsRetentionStr string        `json:"analytics_retention"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	// Local development convenience; missing files are fine.
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		PollSchedule:           os.Getenv("POLL_SCHEDULE"),
		DBOpTimeoutStr:         os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:   os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:   os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:            os.Getenv("METRICS_PATH"),
		MetricsPort:            os.Getenv("METRICS_PORT"),
		SweepEnabled:           os.Getenv("SWEEP_ENABLED") != "false",
		SweepIntervalStr:       os.Getenv("SWEEP_INTERVAL"),
		DiscordWebhookURL:      os.Getenv("DISCORD_WEBHOOK_URL"),
		SMTPHost:               os.Getenv("SMTP_HOST"),
		ReminderToEmail:        os.Getenv("REMINDER_TO_EMAIL"),
		ReminderFromEmail:      os.Getenv("REMINDER_FROM_EMAIL"),
		ReminderFromPassword:   os.Getenv("REMINDER_FROM_PASSWORD"),
		MilestonesStr:          os.Getenv("OVERDUE_MILESTONES"),
		AnalyticsRetentionStr:  os.Getenv("ANALYTICS_RETENTION"),
	}

	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		if n, err := strconv.Atoi(portStr); err == nil && n > 0 {
			cfg.SMTPPort = n
		} else {
			log.Printf("config: invalid SMTP_PORT %q, using default 587", portStr)
		}
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}

	// Hour 0 is not accepted (Validate rejects it): the engine reads a
	// zero window hour as unset and would fall back to 9.
	if hourStr := os.Getenv("REMINDER_WINDOW_HOUR"); hourStr != "" {
		if n, err := strconv.Atoi(hourStr); err == nil {
			cfg.ReminderWindowHour = n
		} else {
			log.Printf("config: invalid REMINDER_WINDOW_HOUR %q, using default 9", hourStr)
		}
	} else {
		cfg.ReminderWindowHour = 9
	}

	if lockKeyStr := os.Getenv("RUN_LOCK_KEY"); lockKeyStr != "" {
		if n, err := strconv.ParseInt(lockKeyStr, 10, 64); err == nil && n > 0 {
			cfg.RunLockKey = n
		} else {
			log.Printf("config: invalid RUN_LOCK_KEY %q (must be a positive integer), using default 911542", lockKeyStr)
		}
	}
	if cfg.RunLockKey == 0 {
		cfg.RunLockKey = 911542
	}

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := strconv.Atoi(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := strconv.Atoi(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.PollSchedule == "" {
		cfg.PollSchedule = "*/5 * * * *"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.SweepIntervalStr == "" {
		cfg.SweepIntervalStr = "1h"
	}
	if cfg.SMTPHost == "" {
		cfg.SMTPHost = "smtp.gmail.com"
	}
	if cfg.MilestonesStr == "" {
		cfg.MilestonesStr = "2,5,8"
	}
	if cfg.AnalyticsRetentionStr == "" {
		cfg.AnalyticsRetentionStr = "720h"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.SweepIntervalStr); err == nil {
		cfg.SweepInterval = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsRetentionStr); err == nil {
		cfg.AnalyticsRetention = d
	}

	if milestones, err := ParseMilestones(cfg.MilestonesStr); err == nil {
		cfg.Milestones = milestones
	}

	return cfg
}

// ParseMilestones parses a comma-separated list of overdue day marks,
// e.g. "2,5,8". The result is sorted ascending.
func ParseMilestones(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	milestones := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, strconv.ErrRange
		}
		milestones = append(milestones, n)
	}
	sort.Ints(milestones)
	return milestones, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL         string `json:"database_url"`
		RedisAddr           string `json:"redis_addr,omitempty"`
		HTTPAddr            string `json:"http_addr"`
		PollSchedule        string `json:"poll_schedule"`
		DBOpTimeout         string `json:"db_op_timeout"`
		DBMaxOpenConns      int    `json:"db_max_open_conns"`
		DBMaxIdleConns      int    `json:"db_max_idle_conns"`
		DBConnMaxLifetime   string `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime   string `json:"db_conn_max_idle_time"`
		HTTPShutdownTimeout string `json:"http_shutdown_timeout"`
		MetricsEnabled      bool   `json:"metrics_enabled"`
		MetricsPath         string `json:"metrics_path"`
		MetricsPort         string `json:"metrics_port"`
		SweepEnabled        bool   `json:"sweep_enabled"`
		SweepInterval       string `json:"sweep_interval"`
		DiscordWebhookURL   string `json:"discord_webhook_url,omitempty"`
		SMTPHost            string `json:"smtp_host"`
		SMTPPort            int    `json:"smtp_port"`
		ReminderToEmail     string `json:"reminder_to_email,omitempty"`
		ReminderFromEmail   string `json:"reminder_from_email,omitempty"`
		ReminderFromPass    string `json:"reminder_from_password,omitempty"`
		Milestones          string `json:"overdue_milestones"`
		ReminderWindowHour  int    `json:"reminder_window_hour"`
		RunLockKey          int64  `json:"run_lock_key"`
		AnalyticsRetention  string `json:"analytics_retention"`
	}{
		DatabaseURL:         maskSecret(c.DatabaseURL),
		RedisAddr:           c.RedisAddr,
		HTTPAddr:            c.HTTPAddr,
		PollSchedule:        c.PollSchedule,
		DBOpTimeout:         c.DBOpTimeoutStr,
		DBMaxOpenConns:      c.DBMaxOpenConns,
		DBMaxIdleConns:      c.DBMaxIdleConns,
		DBConnMaxLifetime:   c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:   c.DBConnMaxIdleTimeStr,
		HTTPShutdownTimeout: c.HTTPShutdownTimeoutStr,
		MetricsEnabled:      c.MetricsEnabled,
		MetricsPath:         c.MetricsPath,
		MetricsPort:         c.MetricsPort,
		SweepEnabled:        c.SweepEnabled,
		SweepInterval:       c.SweepIntervalStr,
		DiscordWebhookURL:   maskWebhook(c.DiscordWebhookURL),
		SMTPHost:            c.SMTPHost,
		SMTPPort:            c.SMTPPort,
		ReminderToEmail:     c.ReminderToEmail,
		ReminderFromEmail:   c.ReminderFromEmail,
		ReminderFromPass:    maskPassword(c.ReminderFromPassword),
		Milestones:          c.MilestonesStr,
		ReminderWindowHour:  c.ReminderWindowHour,
		RunLockKey:          c.RunLockKey,
		AnalyticsRetention:  c.AnalyticsRetentionStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}

func maskWebhook(s string) string {
	if s == "" {
		return ""
	}
	return "https://***"
}

func maskPassword(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
