// Package app assembles stores and the generation service from config for
// the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-draft/generate"
	"github.com/goliatone/go-draft/internal/config"
	"github.com/goliatone/go-draft/pkg/state"
	"github.com/goliatone/go-draft/pkg/state/mongostore"
	"github.com/goliatone/go-draft/pkg/state/redisstore"
	"github.com/goliatone/go-draft/pkg/state/sqlstore"
	"github.com/goliatone/go-draft/pkg/zaplog"
	"github.com/goliatone/go-draft/rules"
)

// CloseFunc releases a resource opened by this package.
type CloseFunc func(context.Context) error

func noClose(context.Context) error { return nil }

// OpenBackend connects the draft backend selected by cfg.
func OpenBackend(ctx context.Context, cfg config.StoreConfig) (state.Backend, CloseFunc, error) {
	switch cfg.Driver {
	case "", "memory":
		return state.NewMemoryBackend(), noClose, nil
	case "redis":
		var opts []redisstore.Option
		if cfg.Prefix != "" {
			opts = append(opts, redisstore.WithPrefix(cfg.Prefix))
		}
		if ttl := cfg.TTL.Std(); ttl > 0 {
			opts = append(opts, redisstore.WithTTL(ttl))
		}
		store, err := redisstore.New(ctx, cfg.DSN, opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, func(context.Context) error { return store.Close() }, nil
	case "sqlite", "postgres":
		dialect, err := sqlstore.ParseDialect(cfg.Driver)
		if err != nil {
			return nil, nil, err
		}
		var opts []sqlstore.Option
		if cfg.Collection != "" {
			opts = append(opts, sqlstore.WithTable(cfg.Collection))
		}
		store, err := sqlstore.Open(ctx, dialect, cfg.DSN, opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, func(context.Context) error { return store.Close() }, nil
	case "mongo":
		store, client, err := mongostore.Connect(ctx, cfg.DSN, cfg.Database, cfg.Collection)
		if err != nil {
			return nil, nil, err
		}
		return store, client.Disconnect, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown store driver %q", cfg.Driver)
	}
}

// OpenCache builds the generation cache selected by cfg; nil for "none".
func OpenCache(ctx context.Context, cfg config.CacheConfig) (generate.Cache, CloseFunc, error) {
	switch cfg.Driver {
	case "none":
		return nil, noClose, nil
	case "", "memory":
		return generate.NewMemoryCache(), noClose, nil
	case "sqlite", "postgres":
		dialect, err := sqlstore.ParseDialect(cfg.Driver)
		if err != nil {
			return nil, nil, err
		}
		cache, err := generate.OpenSQLCache(ctx, dialect, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return cache, func(context.Context) error { return cache.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown cache driver %q", cfg.Driver)
	}
}

// NewProvider returns the provider named in cfg.
func NewProvider(ctx context.Context, cfg config.ProviderConfig) (generate.Provider, error) {
	switch cfg.Name {
	case "", "stub":
		return generate.StubProvider{}, nil
	case "gemini":
		return generate.NewGeminiProvider(ctx, cfg.APIKey, generate.WithGeminiModel(cfg.Model))
	default:
		return nil, fmt.Errorf("app: unknown provider %q", cfg.Name)
	}
}

// NewChecker compiles the rule set for cfg; nil when rules are disabled.
func NewChecker(cfg config.RulesConfig, logger *zap.Logger) (*rules.Checker, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return rules.NewChecker(
		rules.WithEngine(cfg.Engine),
		rules.WithFunctionRegistry(rules.SurveyFunctions()),
		rules.WithLogger(zaplog.Rules(logger)),
	)
}

// NewService wires provider, cache and checker into a generation service.
func NewService(ctx context.Context, cfg config.Config, logger *zap.Logger) (*generate.Service, CloseFunc, error) {
	provider, err := NewProvider(ctx, cfg.Provider)
	if err != nil {
		return nil, nil, err
	}
	checker, err := NewChecker(cfg.Rules, logger)
	if err != nil {
		return nil, nil, err
	}
	cache, closeCache, err := OpenCache(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}

	opts := []generate.ServiceOption{generate.WithLogger(zaplog.Generate(logger))}
	if cache != nil {
		opts = append(opts, generate.WithCache(cache))
	}
	if checker != nil {
		opts = append(opts, generate.WithChecker(checker), generate.WithRuleEnforcement(cfg.Rules.Enforce))
	}
	svc, err := generate.NewService(provider, opts...)
	if err != nil {
		return nil, nil, errors.Join(err, closeCache(ctx))
	}
	return svc, closeCache, nil
}
