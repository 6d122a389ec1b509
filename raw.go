package draft

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// RawSurvey is the survey description returned by the generation service.
// ID and Cached are passed through untouched. Prompt carries the description
// the survey was generated from and namespaces persisted drafts.
type RawSurvey struct {
	ID        any           `json:"id,omitempty"`
	Title     string        `json:"title"`
	Prompt    string        `json:"prompt,omitempty"`
	Questions []RawQuestion `json:"questions"`
	Cached    bool          `json:"cached"`
}

// RawQuestion is one question in the generation service schema.
type RawQuestion struct {
	Type    string `json:"type,omitempty" enum:"rating,multiple_choice,open_text"`
	Text    string `json:"text"`
	Options Labels `json:"options,omitempty"`
	Scale   Scale  `json:"scale,omitzero"`
}

// Labels decodes a JSON array of option labels leniently: null elements
// become empty strings and scalars are stringified.
type Labels []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *Labels) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		// not an array; treat as no options
		*l = nil
		return nil
	}
	out := make(Labels, 0, len(items))
	for _, item := range items {
		out = append(out, labelText(item))
	}
	*l = out
	return nil
}

func labelText(item json.RawMessage) string {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}
	var number json.Number
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&number); err == nil {
		return number.String()
	}
	var flag bool
	if err := json.Unmarshal(trimmed, &flag); err == nil {
		return strconv.FormatBool(flag)
	}
	return string(trimmed)
}

// Scale is a rating scale that tolerates numbers, numeric strings and junk.
// Non-numeric input decodes as unset instead of failing the whole payload.
type Scale struct {
	value float64
	set   bool
}

// NewScale returns a Scale holding n.
func NewScale(n float64) Scale {
	return Scale{value: n, set: true}
}

// Value returns the decoded number and whether one was present.
func (s Scale) Value() (float64, bool) {
	return s.value, s.set
}

// IsZero lets encoding/json omit unset scales.
func (s Scale) IsZero() bool {
	return !s.set
}

// MarshalJSON implements json.Marshaler.
func (s Scale) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	if math.IsInf(s.value, 0) {
		return json.Marshal(math.Copysign(math.MaxFloat64, s.value))
	}
	return json.Marshal(s.value)
}

// UnmarshalJSON implements json.Unmarshaler. Numbers beyond float64 range
// decode as infinities so they clamp like any other oversized scale.
func (s *Scale) UnmarshalJSON(data []byte) error {
	*s = Scale{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var number json.Number
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&number); err == nil {
		if value, ok := parseScale(number.String()); ok {
			*s = NewScale(value)
		}
		return nil
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		if value, ok := parseScale(strings.TrimSpace(text)); ok {
			*s = NewScale(value)
		}
	}
	return nil
}

func parseScale(text string) (float64, bool) {
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return value, true
		}
		return 0, false
	}
	if math.IsNaN(value) {
		return 0, false
	}
	if math.IsInf(value, 0) && !strings.HasSuffix(text, "Infinity") {
		return 0, false
	}
	return value, true
}
