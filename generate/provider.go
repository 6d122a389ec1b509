package generate

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	draft "github.com/goliatone/go-draft"
)

// Provider turns a description into a raw survey.
type Provider interface {
	Name() string
	Generate(ctx context.Context, description string) (draft.RawSurvey, error)
}

// StubProvider returns a fixed three-question survey titled after the
// description. It needs no credentials and is deterministic.
type StubProvider struct{}

func (StubProvider) Name() string { return "stub" }

func (StubProvider) Generate(_ context.Context, description string) (draft.RawSurvey, error) {
	title := cases.Title(language.English).String(strings.TrimSpace(description))
	if title == "" {
		title = "Generated Survey"
	}
	return draft.RawSurvey{
		ID:    1,
		Title: title,
		Questions: []draft.RawQuestion{
			{Type: draft.RawRating, Text: "Overall satisfaction", Scale: draft.NewScale(5)},
			{
				Type:    draft.RawMultipleChoice,
				Text:    "Which area needs the most improvement?",
				Options: draft.Labels{"Pricing", "Delivery speed", "Product quality", "Support"},
			},
			{Type: draft.RawOpenText, Text: "What is one thing we should change first?"},
		},
	}, nil
}
