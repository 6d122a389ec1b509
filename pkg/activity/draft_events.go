package activity

import (
	"strings"
	"time"
)

// Draft lifecycle verbs.
const (
	VerbDraftRestored    = "draft.restored"
	VerbDraftNormalized  = "draft.normalized"
	VerbDraftRegenerated = "draft.regenerated"
	VerbDraftRetained    = "draft.retained"
	VerbDraftSaved       = "draft.saved"
	VerbDraftSaveFailed  = "draft.save_failed"
	VerbDraftSaveDropped = "draft.save_dropped"
	VerbDraftDiscarded   = "draft.discarded"
)

// ObjectTypeDraft is the object type attached to every draft event.
const ObjectTypeDraft = "survey_draft"

// DraftEventInput describes the common fields for draft lifecycle events.
type DraftEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Key        string
	Lookup     string
	Questions  int
	Epoch      uint64
	Err        error
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildDraftEvent constructs an activity event for verb keyed by the draft's
// storage key.
func BuildDraftEvent(verb string, input DraftEventInput) Event {
	metadata := CloneMetadata(input.Metadata)
	set := func(name string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[name] = value
	}
	if input.Lookup != "" {
		set("lookup", input.Lookup)
	}
	if input.Questions > 0 {
		set("questions", input.Questions)
	}
	if input.Epoch > 0 {
		set("epoch", input.Epoch)
	}
	if input.Err != nil {
		set("error", input.Err.Error())
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeDraft,
		ObjectID:   strings.TrimSpace(input.Key),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
