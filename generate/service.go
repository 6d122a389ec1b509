package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/pkg/state"
	"github.com/goliatone/go-draft/rules"
)

// ErrProviderRequired is returned by NewService without a provider.
var ErrProviderRequired = errors.New("generate: provider is required")

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache enables per-prompt caching.
func WithCache(cache Cache) ServiceOption {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithChecker runs checker over every generated survey. Failures are logged
// and the survey is still served unless WithRuleEnforcement is set.
func WithChecker(checker *rules.Checker) ServiceOption {
	return func(s *Service) {
		s.checker = checker
	}
}

// WithRuleEnforcement rejects surveys failing the checker with *RuleViolation
// instead of logging them.
func WithRuleEnforcement(enforce bool) ServiceOption {
	return func(s *Service) {
		s.enforce = enforce
	}
}

// WithLogger attaches a generation logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger == nil {
			s.logger = noopLogger{}
			return
		}
		s.logger = logger
	}
}

// Service answers generation requests: cache first, then the provider, then
// the optional rule checker. Concurrent requests for the same normalized prompt share
// one provider call.
type Service struct {
	provider Provider
	cache    Cache
	checker  *rules.Checker
	enforce  bool
	logger   Logger
	group    singleflight.Group
}

func NewService(provider Provider, opts ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	s := &Service{provider: provider, logger: noopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Provider returns the configured provider.
func (s *Service) Provider() Provider {
	return s.provider
}

// Generate returns a survey for req.Description with Prompt set to the
// description. Cache hits are marked Cached; Fresh skips the cache read and
// overwrites the entry.
func (s *Service) Generate(ctx context.Context, req Request) (draft.RawSurvey, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return draft.RawSurvey{}, ErrEmptyDescription
	}

	flight := "cached:"
	if req.Fresh {
		flight = "fresh:"
	}
	flight += state.NormalizePrompt(description)

	// the shared call must outlive any single caller's cancellation
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flight, func() (any, error) {
		return s.generate(detached, description, req.Fresh)
	})

	select {
	case <-ctx.Done():
		return draft.RawSurvey{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return draft.RawSurvey{}, res.Err
		}
		survey := cloneSurvey(res.Val.(draft.RawSurvey))
		survey.Prompt = description
		return survey, nil
	}
}

func (s *Service) generate(ctx context.Context, description string, fresh bool) (survey draft.RawSurvey, err error) {
	start := time.Now()
	cached := false
	defer func() {
		s.logger.LogGeneration(LogEvent{
			Op:       "generate",
			Prompt:   description,
			Provider: s.provider.Name(),
			Cached:   cached,
			Duration: time.Since(start),
			Err:      err,
		})
	}()

	if s.cache != nil && !fresh {
		hit, ok, lookupErr := s.cache.Lookup(ctx, description)
		switch {
		case lookupErr != nil:
			s.logger.LogGeneration(LogEvent{Op: "cache.lookup", Prompt: description, Err: lookupErr})
		case ok:
			cached = true
			hit.Cached = true
			return hit, nil
		}
	}

	survey, err = s.provider.Generate(ctx, description)
	if err != nil {
		if !errors.Is(err, ErrProvider) {
			err = fmt.Errorf("%w: %w", ErrProvider, err)
		}
		return draft.RawSurvey{}, err
	}
	survey.Cached = false

	if s.checker != nil {
		checked := survey
		checked.Prompt = description
		if checkErr := s.checker.Check(checked); checkErr != nil {
			violation := &RuleViolation{Prompt: description, Err: checkErr}
			var v *rules.Violation
			if errors.As(checkErr, &v) {
				violation.Failures = v.Failures
			}
			if s.enforce {
				return draft.RawSurvey{}, violation
			}
			s.logger.LogGeneration(LogEvent{Op: "rules", Prompt: description, Provider: s.provider.Name(), Err: violation})
		}
	}

	if s.cache != nil {
		stored, storeErr := s.cache.Store(ctx, description, survey, s.provider.Name())
		if storeErr != nil {
			s.logger.LogGeneration(LogEvent{Op: "cache.store", Prompt: description, Err: storeErr})
		} else {
			survey = stored
		}
	}
	return survey, nil
}
