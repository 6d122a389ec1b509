package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/goliatone/go-draft/generate"
	"github.com/goliatone/go-draft/internal/app"
	"github.com/goliatone/go-draft/internal/config"
	"github.com/goliatone/go-draft/pkg/state"
)

func roundTrip(t *testing.T, backend state.Backend) {
	t.Helper()
	ctx := context.Background()
	if err := backend.Set(ctx, "survey:last", []byte(`{"title":"x","description":"","questions":[]}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := backend.Get(ctx, "survey:last")
	if err != nil || !ok || len(value) == 0 {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
}

func TestOpenBackendDrivers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cases := []config.StoreConfig{
		{Driver: "memory"},
		{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "drafts.db")},
		{Driver: "redis", DSN: "redis://" + mr.Addr() + "/0", Prefix: "test:"},
	}
	for _, cfg := range cases {
		t.Run(cfg.Driver, func(t *testing.T) {
			backend, closeFn, err := app.OpenBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer func() { _ = closeFn(ctx) }()
			roundTrip(t, backend)
		})
	}
	if !mr.Exists("test:survey:last") {
		t.Fatalf("expected redis key to carry the configured prefix")
	}
}

func TestOpenBackendRejectsUnknownDriver(t *testing.T) {
	if _, _, err := app.OpenBackend(context.Background(), config.StoreConfig{Driver: "etcd"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewServiceFromDefaults(t *testing.T) {
	ctx := context.Background()
	svc, closeFn, err := app.NewService(ctx, config.Default(), zap.NewNop())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer func() { _ = closeFn(ctx) }()

	if _, ok := svc.Provider().(generate.StubProvider); !ok {
		t.Fatalf("expected stub provider, got %T", svc.Provider())
	}
	first, err := svc.Generate(ctx, generate.Request{Description: "coffee"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, _ := svc.Generate(ctx, generate.Request{Description: "coffee"})
	if first.Cached || !second.Cached {
		t.Fatalf("expected memory cache, got cached=%v/%v", first.Cached, second.Cached)
	}
}

func TestNewServiceWithSQLiteCacheAndCEL(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Cache = config.CacheConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "cache.db")}
	cfg.Rules.Engine = "cel"

	svc, closeFn, err := app.NewService(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer func() { _ = closeFn(ctx) }()

	if _, err := svc.Generate(ctx, generate.Request{Description: "onboarding"}); err != nil {
		t.Fatalf("generate: %v", err)
	}
}

func TestNewCheckerDisabled(t *testing.T) {
	checker, err := app.NewChecker(config.RulesConfig{Enabled: false, Engine: "expr"}, nil)
	if err != nil || checker != nil {
		t.Fatalf("expected nil checker, got %v %v", checker, err)
	}
}
