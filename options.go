package draft

import "github.com/google/uuid"

// IDGenerator produces fresh opaque identifiers for questions and options.
type IDGenerator interface {
	NewID() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

// NewID implements IDGenerator.
func (f IDGeneratorFunc) NewID() string {
	if f == nil {
		return uuid.NewString()
	}
	return f()
}

// DefaultIDGenerator returns the UUID v4 backed generator.
func DefaultIDGenerator() IDGenerator {
	return IDGeneratorFunc(uuid.NewString)
}

// NormalizeOption configures normalization and question construction.
type NormalizeOption func(*config)

type config struct {
	ids IDGenerator
}

// WithIDGenerator overrides the identifier source. A nil generator keeps the
// default.
func WithIDGenerator(ids IDGenerator) NormalizeOption {
	return func(cfg *config) {
		if ids != nil {
			cfg.ids = ids
		}
	}
}

func applyOptions(opts []NormalizeOption) config {
	cfg := config{ids: DefaultIDGenerator()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
