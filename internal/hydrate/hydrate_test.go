package hydrate

import (
	"errors"
	"fmt"
	"testing"
)

type record struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func requireItems(_ Context, payload map[string]any) (map[string]any, error) {
	if _, ok := payload["items"].([]any); !ok {
		return nil, fmt.Errorf("items must be an array")
	}
	return payload, nil
}

func TestDecodeBytesClassifiesFailures(t *testing.T) {
	decoder := NewDecoder[record](WithPreHook[record](requireItems))

	cases := []struct {
		name  string
		input string
		want  error
	}{
		{name: "empty", input: "   ", want: ErrMalformed},
		{name: "syntax", input: `{"name":`, want: ErrMalformed},
		{name: "trailing", input: `{"items":[]} {}`, want: ErrMalformed},
		{name: "trailing bracket", input: `{"items":[]}]`, want: ErrMalformed},
		{name: "trailing brace", input: `{"items":[]}}`, want: ErrMalformed},
		{name: "array root", input: `[1,2]`, want: ErrShape},
		{name: "string root", input: `"hello"`, want: ErrShape},
		{name: "items not array", input: `{"items":"x"}`, want: ErrShape},
		{name: "wrong field type", input: `{"name":3,"items":[]}`, want: ErrShape},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decoder.DecodeBytes(Context{Key: "k"}, []byte(tc.input))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDecodeAppliesHooksInOrder(t *testing.T) {
	var calls []string
	decoder := NewDecoder[record](
		WithPreHook[record](func(_ Context, payload map[string]any) (map[string]any, error) {
			calls = append(calls, "pre")
			payload["name"] = "renamed"
			return payload, nil
		}),
		WithPostHook[record](func(ctx Context, r *record) error {
			calls = append(calls, "post:"+ctx.Key)
			r.Items = append(r.Items, "tail")
			return nil
		}),
	)

	got, err := decoder.DecodeBytes(Context{Key: "survey:last"}, []byte(`{"name":"x","items":["a"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "renamed" || len(got.Items) != 2 || got.Items[1] != "tail" {
		t.Fatalf("unexpected result: %#v", got)
	}
	if len(calls) != 2 || calls[0] != "pre" || calls[1] != "post:survey:last" {
		t.Fatalf("unexpected hook order: %v", calls)
	}
}

func TestDecodePostHookErrorIsShape(t *testing.T) {
	boom := errors.New("boom")
	decoder := NewDecoder[record](WithPostHook[record](func(Context, *record) error { return boom }))

	_, err := decoder.DecodeBytes(Context{Key: "k"}, []byte(`{}`))
	if !errors.Is(err, ErrShape) || !errors.Is(err, boom) {
		t.Fatalf("expected shape error wrapping boom, got %v", err)
	}
}

func TestDisallowUnknownFields(t *testing.T) {
	decoder := NewDecoder[record](WithDisallowUnknownFields[record]())
	if _, err := decoder.DecodeBytes(Context{}, []byte(`{"extra":true}`)); !errors.Is(err, ErrShape) {
		t.Fatalf("expected shape error, got %v", err)
	}
}
