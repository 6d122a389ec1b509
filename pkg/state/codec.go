package state

import (
	"encoding/json"
	"fmt"
	"strings"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/internal/hydrate"
)

// newDraftDecoder builds the decoder applied to stored payloads. The pre-hook
// rewrites the payload into its canonical layout and rejects anything that
// does not look like a draft; the post-hook enforces id uniqueness.
func newDraftDecoder() *hydrate.Decoder[draft.Draft] {
	return hydrate.NewDecoder[draft.Draft](
		hydrate.WithPreHook[draft.Draft](canonicalDraft),
		hydrate.WithPostHook[draft.Draft](func(_ hydrate.Context, d *draft.Draft) error {
			return d.Validate()
		}),
	)
}

func encodeDraft(d draft.Draft) ([]byte, error) {
	d = d.Clone()
	if d.Questions == nil {
		d.Questions = []draft.Question{}
	}
	for i := range d.Questions {
		if d.Questions[i].Options == nil {
			d.Questions[i].Options = []draft.Option{}
		}
	}
	return json.Marshal(d)
}

func canonicalDraft(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	title, err := optionalString(payload, "title")
	if err != nil {
		return nil, err
	}
	description, err := optionalString(payload, "description")
	if err != nil {
		return nil, err
	}
	rawQuestions, ok := payload["questions"].([]any)
	if !ok {
		return nil, fmt.Errorf("questions must be an array, got %T", payload["questions"])
	}

	questions := make([]any, 0, len(rawQuestions))
	for i, item := range rawQuestions {
		q, err := canonicalQuestion(item)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		questions = append(questions, q)
	}

	return map[string]any{
		"title":       title,
		"description": description,
		"questions":   questions,
	}, nil
}

func canonicalQuestion(item any) (map[string]any, error) {
	q, ok := item.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("must be an object, got %T", item)
	}
	id, err := requiredID(q)
	if err != nil {
		return nil, err
	}
	title, err := optionalString(q, "title")
	if err != nil {
		return nil, err
	}
	kind, ok := q["type"].(string)
	if !ok || !draft.QuestionType(kind).Known() {
		return nil, fmt.Errorf("unknown type %v", q["type"])
	}
	saved := false
	if value, present := q["saved"]; present && value != nil {
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("saved must be a boolean, got %T", value)
		}
		saved = b
	}

	options := []any{}
	if value, present := q["options"]; present && value != nil {
		list, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("options must be an array, got %T", value)
		}
		for j, raw := range list {
			opt, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("option %d must be an object, got %T", j, raw)
			}
			optID, err := requiredID(opt)
			if err != nil {
				return nil, fmt.Errorf("option %d: %w", j, err)
			}
			text, err := optionalString(opt, "text")
			if err != nil {
				return nil, fmt.Errorf("option %d: %w", j, err)
			}
			options = append(options, map[string]any{"id": optID, "text": text})
		}
	}

	return map[string]any{
		"id":      id,
		"title":   title,
		"type":    kind,
		"options": options,
		"saved":   saved,
	}, nil
}

// requiredID accepts a non-empty string or a JSON number rendered verbatim.
func requiredID(m map[string]any) (string, error) {
	var id string
	switch v := m["id"].(type) {
	case string:
		id = v
	case json.Number:
		id = v.String()
	default:
		return "", fmt.Errorf("id must be a string, got %T", m["id"])
	}
	if strings.TrimSpace(id) == "" {
		return "", draft.ErrEmptyID
	}
	return id, nil
}

func optionalString(m map[string]any, name string) (string, error) {
	value, present := m[name]
	if !present || value == nil {
		return "", nil
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", name, value)
	}
	return s, nil
}
