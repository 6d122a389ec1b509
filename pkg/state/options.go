package state

import (
	"time"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/pkg/activity"
)

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	logger   Logger
	delay    time.Duration
	hooks    activity.Hooks
	activity activity.Config
	ids      draft.IDGenerator
	domain   string
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		logger:   noopLogger{},
		activity: activity.Config{Enabled: true, Channel: activity.DefaultChannel},
		ids:      draft.DefaultIDGenerator(),
		domain:   DefaultDomain,
	}
}

// WithLogger routes session events to logger.
func WithLogger(logger Logger) SessionOption {
	return func(cfg *sessionConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithAutosaveDelay coalesces autosave writes, persisting only the latest
// snapshot once delay has elapsed without further changes. Zero or negative
// delays write every change synchronously.
func WithAutosaveDelay(delay time.Duration) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.delay = delay
	}
}

// WithActivityHooks registers hooks notified of draft lifecycle events.
func WithActivityHooks(hooks ...activity.ActivityHook) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.hooks = append(cfg.hooks, hooks...)
	}
}

// WithActivityConfig overrides emitter defaults such as channel and actor.
func WithActivityConfig(config activity.Config) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.activity = config
	}
}

// WithIDGenerator overrides the identifier source used for normalization and
// new questions.
func WithIDGenerator(ids draft.IDGenerator) SessionOption {
	return func(cfg *sessionConfig) {
		if ids != nil {
			cfg.ids = ids
		}
	}
}

// WithDomain namespaces the session's storage keys.
func WithDomain(domain string) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.domain = domain
	}
}
