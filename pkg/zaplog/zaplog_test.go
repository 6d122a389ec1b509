package zaplog_test

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-draft/generate"
	"github.com/goliatone/go-draft/pkg/state"
	"github.com/goliatone/go-draft/pkg/zaplog"
	"github.com/goliatone/go-draft/rules"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestStateLoggerLevels(t *testing.T) {
	logger, logs := observed()
	log := zaplog.State(logger)

	log.LogState(state.LogEvent{Op: "get", Key: "survey:last", Status: state.LookupFound, Duration: time.Millisecond})
	log.LogState(state.LogEvent{Op: "autosave", Key: "survey:last", Err: errors.New("down")})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[0].ContextMap()["status"] != "found" {
		t.Fatalf("unexpected first entry: %#v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel || entries[1].ContextMap()["error"] != "down" {
		t.Fatalf("unexpected second entry: %#v", entries[1])
	}
	if entries[1].LoggerName != "state" {
		t.Fatalf("expected named logger, got %q", entries[1].LoggerName)
	}
}

func TestRulesLoggerRaisesFailedRules(t *testing.T) {
	logger, logs := observed()
	log := zaplog.Rules(logger)

	log.LogEvaluation(rules.LogEvent{Engine: "expr", Rule: "has_rating", Passed: true})
	log.LogEvaluation(rules.LogEvent{Engine: "expr", Rule: "has_rating", Passed: false})

	entries := logs.All()
	if entries[0].Level != zapcore.DebugLevel || entries[1].Level != zapcore.InfoLevel {
		t.Fatalf("unexpected levels: %v %v", entries[0].Level, entries[1].Level)
	}
}

func TestGenerateLogger(t *testing.T) {
	logger, logs := observed()
	zaplog.Generate(logger).LogGeneration(generate.LogEvent{Op: "generate", Prompt: "coffee", Provider: "stub", Cached: true})

	entry := logs.All()[0]
	if entry.Level != zapcore.InfoLevel || entry.ContextMap()["cached"] != true || entry.ContextMap()["provider"] != "stub" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	zaplog.State(nil).LogState(state.LogEvent{Op: "get"})
	zaplog.Generate(nil).LogGeneration(generate.LogEvent{Op: "generate"})
	zaplog.Rules(nil).LogEvaluation(rules.LogEvent{})
}
