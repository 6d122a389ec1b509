package draft

// QuestionType identifies the editor widget used for an internal question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multipleChoice"
	QuestionSingleChoice   QuestionType = "singleChoice"
	QuestionShortAnswer    QuestionType = "shortAnswer"
)

// Raw question types emitted by the generation service.
const (
	RawMultipleChoice = "multiple_choice"
	RawRating         = "rating"
	RawOpenText       = "open_text"
)

// Draft is the authoritative editable survey held by an editing session. Its
// JSON form is also the persisted layout.
type Draft struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Question is one editable survey question.
type Question struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Type    QuestionType `json:"type"`
	Options []Option     `json:"options"`
	Saved   bool         `json:"saved"`
}

// Option is one selectable answer of a choice question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Known reports whether t is one of the supported internal types.
func (t QuestionType) Known() bool {
	switch t {
	case QuestionMultipleChoice, QuestionSingleChoice, QuestionShortAnswer:
		return true
	default:
		return false
	}
}

// HasOptions reports whether questions of type t carry selectable options.
func (t QuestionType) HasOptions() bool {
	return t == QuestionMultipleChoice || t == QuestionSingleChoice
}

// ParseQuestionType maps an arbitrary string onto a known internal type,
// falling back to QuestionShortAnswer.
func ParseQuestionType(value string) QuestionType {
	t := QuestionType(value)
	if t.Known() {
		return t
	}
	return QuestionShortAnswer
}

// Clone returns a deep copy of d so callers cannot alias session state.
func (d Draft) Clone() Draft {
	out := Draft{
		Title:       d.Title,
		Description: d.Description,
	}
	if d.Questions != nil {
		out.Questions = CloneQuestions(d.Questions)
	}
	return out
}

// CloneQuestions deep copies questions including their options.
func CloneQuestions(questions []Question) []Question {
	if questions == nil {
		return nil
	}
	out := make([]Question, len(questions))
	for i, q := range questions {
		out[i] = q
		if q.Options != nil {
			out[i].Options = make([]Option, len(q.Options))
			copy(out[i].Options, q.Options)
		}
	}
	return out
}

// IsZero reports whether the draft carries no content at all.
func (d Draft) IsZero() bool {
	return d.Title == "" && d.Description == "" && len(d.Questions) == 0
}
