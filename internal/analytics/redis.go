// Package analytics keeps per-day reminder counters in Redis. The
// counters feed ad-hoc reporting only; delivery never depends on them,
// so writes are fire-and-forget.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flycast-tech/jobremind/internal/engine"
)

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisSink(client *redis.Client, retention time.Duration) *RedisSink {
	return &RedisSink{client: client, retention: retention}
}

// RecordReminder bumps the daily counter for a reminder cause. Failures
// are logged and swallowed.
func (s *RedisSink) RecordReminder(ctx context.Context, cause engine.Cause, day time.Time) {
	key := buildKey(cause, day)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: record reminder %s: %v", key, err)
	}
}

// DayCount reads back the counter for a cause on a given day. Missing
// keys read as zero.
func (s *RedisSink) DayCount(ctx context.Context, cause engine.Cause, day time.Time) (int64, error) {
	n, err := s.client.Get(ctx, buildKey(cause, day)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("analytics: read counter: %w", err)
	}
	return n, nil
}

func buildKey(cause engine.Cause, day time.Time) string {
	return fmt.Sprintf("reminders:%s:%s", cause, day.Format("20060102"))
}
