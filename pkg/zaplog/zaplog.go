// Package zaplog adapts the event loggers of the draft packages onto a
// *zap.Logger. Failures log at warn, everything else at debug.
package zaplog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-draft/generate"
	"github.com/goliatone/go-draft/pkg/state"
	"github.com/goliatone/go-draft/rules"
)

// New builds a production zap logger, at debug level when verbose.
func New(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func level(err error) zapcore.Level {
	if err != nil {
		return zapcore.WarnLevel
	}
	return zapcore.DebugLevel
}

// State returns a state.Logger writing to logger.
func State(logger *zap.Logger) state.Logger {
	logger = orNop(logger).Named("state")
	return state.LoggerFunc(func(e state.LogEvent) {
		fields := []zap.Field{
			zap.String("op", e.Op),
			zap.String("key", e.Key),
			zap.Duration("duration", e.Duration),
		}
		if e.Status != "" {
			fields = append(fields, zap.String("status", string(e.Status)))
		}
		if e.Source != "" {
			fields = append(fields, zap.String("source", string(e.Source)))
		}
		if e.Err != nil {
			fields = append(fields, zap.Error(e.Err))
		}
		logger.Log(level(e.Err), "draft state", fields...)
	})
}

// Rules returns a rules.Logger writing to logger.
func Rules(logger *zap.Logger) rules.Logger {
	logger = orNop(logger).Named("rules")
	return rules.LoggerFunc(func(e rules.LogEvent) {
		fields := []zap.Field{
			zap.String("engine", e.Engine),
			zap.String("rule", e.Rule),
			zap.Bool("passed", e.Passed),
			zap.Duration("duration", e.Duration),
		}
		if e.Err != nil {
			fields = append(fields, zap.String("expr", e.Expr), zap.Error(e.Err))
		}
		lvl := level(e.Err)
		if !e.Passed && lvl < zapcore.InfoLevel {
			lvl = zapcore.InfoLevel
		}
		logger.Log(lvl, "rule evaluated", fields...)
	})
}

// Generate returns a generate.Logger writing to logger.
func Generate(logger *zap.Logger) generate.Logger {
	logger = orNop(logger).Named("generate")
	return generate.LoggerFunc(func(e generate.LogEvent) {
		fields := []zap.Field{
			zap.String("op", e.Op),
			zap.String("prompt", e.Prompt),
		}
		if e.Provider != "" {
			fields = append(fields, zap.String("provider", e.Provider))
		}
		if e.Op == "generate" {
			fields = append(fields, zap.Bool("cached", e.Cached), zap.Duration("duration", e.Duration))
		}
		if e.Err != nil {
			fields = append(fields, zap.Error(e.Err))
		}
		lvl := level(e.Err)
		if e.Op == "generate" && e.Err == nil {
			lvl = zapcore.InfoLevel
		}
		logger.Log(lvl, "survey generation", fields...)
	})
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
