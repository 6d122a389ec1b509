package draft

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyID indicates a question or option without an identifier.
	ErrEmptyID = errors.New("draft: id must not be empty")
	// ErrDuplicateID indicates two entries in one draft share an identifier.
	ErrDuplicateID = errors.New("draft: ids must be unique")
	// ErrUnknownType indicates a question type outside the supported set.
	ErrUnknownType = errors.New("draft: unknown question type")
)

// Validate checks the structural invariants of a draft: every question and
// option id is present and unique across the draft, and every question type
// is known.
func (d Draft) Validate() error {
	return ValidateQuestions(d.Questions)
}

// ValidateQuestions applies the Draft invariants to a question list.
func ValidateQuestions(questions []Question) error {
	seen := make(map[string]struct{}, len(questions)*4)
	check := func(id, where string) error {
		if id == "" {
			return fmt.Errorf("%w: %s", ErrEmptyID, where)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
		return nil
	}
	for i, q := range questions {
		if err := check(q.ID, fmt.Sprintf("question %d", i)); err != nil {
			return err
		}
		if !q.Type.Known() {
			return fmt.Errorf("%w: %q", ErrUnknownType, q.Type)
		}
		for j, opt := range q.Options {
			if err := check(opt.ID, fmt.Sprintf("question %d option %d", i, j)); err != nil {
				return err
			}
		}
	}
	return nil
}
