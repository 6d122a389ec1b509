package draft

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateDetectsDuplicateIDsAcrossQuestionsAndOptions(t *testing.T) {
	d := Draft{Questions: []Question{
		{ID: "q1", Type: QuestionSingleChoice, Options: []Option{{ID: "o1"}}},
		{ID: "o1", Type: QuestionShortAnswer},
	}}
	if err := d.Validate(); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestValidateRejectsEmptyIDsAndUnknownTypes(t *testing.T) {
	if err := (Draft{Questions: []Question{{Type: QuestionShortAnswer}}}).Validate(); !errors.Is(err, ErrEmptyID) {
		t.Fatalf("expected ErrEmptyID, got %v", err)
	}
	if err := (Draft{Questions: []Question{{ID: "q", Type: "matrix"}}}).Validate(); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestCloneDetachesQuestionsAndOptions(t *testing.T) {
	original := Draft{Title: "T", Questions: []Question{
		{ID: "q1", Type: QuestionMultipleChoice, Options: []Option{{ID: "o1", Text: "a"}}},
	}}

	clone := original.Clone()
	clone.Questions[0].Title = "changed"
	clone.Questions[0].Options[0].Text = "changed"

	if original.Questions[0].Title != "" || original.Questions[0].Options[0].Text != "a" {
		t.Fatalf("expected original untouched, got %#v", original.Questions[0])
	}
}

func TestClonePreservesEmptyOptionLists(t *testing.T) {
	d := Normalize(RawSurvey{Title: "T", Questions: []RawQuestion{{Type: RawOpenText, Text: "Why?"}}}, WithIDGenerator(sequentialIDs()))

	clone := d.Clone()
	if diff := cmp.Diff(d, clone); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}
	if clone.Questions[0].Options == nil {
		t.Fatalf("expected empty non-nil options after clone")
	}
	payload, err := json.Marshal(clone)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want, _ := json.Marshal(d)
	if string(payload) != string(want) {
		t.Fatalf("expected %s, got %s", want, payload)
	}
}
