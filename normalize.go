package draft

import (
	"math"
	"strconv"
)

const (
	// DefaultRatingScale applies when a rating question has no usable scale.
	DefaultRatingScale = 5
	MinRatingScale     = 2
	MaxRatingScale     = 10
)

// Normalize maps a generated survey onto a fresh editable draft. It is pure
// except for identifier generation; every call yields new ids.
func Normalize(raw RawSurvey, opts ...NormalizeOption) Draft {
	cfg := applyOptions(opts)
	out := Draft{
		Title:       raw.Title,
		Description: "",
		Questions:   make([]Question, 0, len(raw.Questions)),
	}
	for _, q := range raw.Questions {
		out.Questions = append(out.Questions, normalizeQuestion(q, cfg.ids))
	}
	return out
}

func normalizeQuestion(raw RawQuestion, ids IDGenerator) Question {
	q := Question{
		ID:      ids.NewID(),
		Title:   raw.Text,
		Options: []Option{},
	}
	switch raw.Type {
	case RawMultipleChoice:
		q.Type = QuestionMultipleChoice
		for _, label := range raw.Options {
			q.Options = append(q.Options, Option{ID: ids.NewID(), Text: label})
		}
	case RawRating:
		q.Type = QuestionSingleChoice
		n := RatingScale(raw.Scale)
		for k := 1; k <= n; k++ {
			q.Options = append(q.Options, Option{ID: ids.NewID(), Text: strconv.Itoa(k)})
		}
	default:
		q.Type = QuestionShortAnswer
	}
	return q
}

// RatingScale resolves the number of options a rating question materializes.
// Unset, zero or NaN scales use DefaultRatingScale; the result, infinities
// included, is clamped to [MinRatingScale, MaxRatingScale] and truncated.
func RatingScale(scale Scale) int {
	value, ok := scale.Value()
	if !ok || value == 0 || math.IsNaN(value) {
		value = DefaultRatingScale
	}
	value = math.Max(MinRatingScale, math.Min(value, MaxRatingScale))
	return int(math.Trunc(value))
}

// NewQuestion builds an empty question of type t with fresh ids. Choice
// questions start with one blank option; unknown types fall back to
// QuestionShortAnswer.
func NewQuestion(t QuestionType, opts ...NormalizeOption) Question {
	cfg := applyOptions(opts)
	if !t.Known() {
		t = QuestionShortAnswer
	}
	q := Question{
		ID:      cfg.ids.NewID(),
		Type:    t,
		Options: []Option{},
	}
	if t.HasOptions() {
		q.Options = append(q.Options, Option{ID: cfg.ids.NewID()})
	}
	return q
}
