package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformed marks payloads that are not a JSON object.
	ErrMalformed = errors.New("hydrate: malformed payload")
	// ErrShape marks payloads that parsed but failed a shape check.
	ErrShape = errors.New("hydrate: unexpected shape")
)

// Context carries identifiers tied to a stored payload.
type Context struct {
	Key string
}

// PreHook lets callers check or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the hydrated value after decoding.
type PostHook[T any] func(Context, *T) error

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts stored JSON payloads into typed values. Failures are
// classified: errors.Is(err, ErrMalformed) for parse failures and
// errors.Is(err, ErrShape) for hook or decode failures.
type Decoder[T any] struct {
	preHooks     []PreHook
	postHooks    []PostHook[T]
	configureDec []func(*json.Decoder)
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// DecodeBytes parses data as a JSON object and decodes it via Decode. Numbers
// are kept as json.Number so hooks can inspect them without float rounding.
func (d *Decoder[T]) DecodeBytes(ctx Context, data []byte) (T, error) {
	var zero T
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return zero, fmt.Errorf("%w: empty value for key %q", ErrMalformed, ctx.Key)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return zero, fmt.Errorf("%w: key %q: %v", ErrMalformed, ctx.Key, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return zero, fmt.Errorf("%w: trailing data for key %q", ErrMalformed, ctx.Key)
	}
	payload, ok := parsed.(map[string]any)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T, want object", ErrShape, ctx.Key, parsed)
	}
	return d.Decode(ctx, payload)
}

// Decode converts payload into T applying configured hooks.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T

	if payload == nil {
		return zero, fmt.Errorf("%w: payload is nil for key %q", ErrShape, ctx.Key)
	}

	current := payload
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("%w: pre-hook for key %q: %w", ErrShape, ctx.Key, err)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("%w: marshal payload for key %q: %w", ErrShape, ctx.Key, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	for _, configure := range d.configureDec {
		if configure != nil {
			configure(decoder)
		}
	}
	var result T
	if err := decoder.Decode(&result); err != nil {
		return zero, fmt.Errorf("%w: decode key %q: %w", ErrShape, ctx.Key, err)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("%w: post-hook for key %q: %w", ErrShape, ctx.Key, err)
		}
	}

	return result, nil
}
