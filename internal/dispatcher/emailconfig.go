package dispatcher

import (
	"context"

	"github.com/flycast-tech/jobremind/internal/domain"
)

// StaticEmailConfig is an EmailConfigSource backed by environment-derived
// credentials. Used directly in tests and as the fallback behind the
// store-backed source.
type StaticEmailConfig struct {
	Config domain.EmailConfig
}

func (s StaticEmailConfig) EmailConfig(ctx context.Context) (domain.EmailConfig, error) {
	return s.Config, nil
}

// FallbackEmailConfig prefers the primary source (the stored per-user
// configuration) and falls back to the secondary (environment credentials)
// when the primary errors or is not completely configured.
type FallbackEmailConfig struct {
	Primary   EmailConfigSource
	Secondary EmailConfigSource
}

func (f FallbackEmailConfig) EmailConfig(ctx context.Context) (domain.EmailConfig, error) {
	cfg, err := f.Primary.EmailConfig(ctx)
	if err == nil && cfg.Configured && cfg.Complete() {
		return cfg, nil
	}
	return f.Secondary.EmailConfig(ctx)
}
