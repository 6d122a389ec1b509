package state

import (
	"encoding/json"
)

// Source records where the session's current draft came from.
type Source string

const (
	// SourceRestored means a stored draft for the key was loaded.
	SourceRestored Source = "restored"
	// SourceNormalized means nothing usable was stored and the incoming
	// survey was normalized.
	SourceNormalized Source = "normalized"
	// SourceRegenerated means stored edits were discarded on request.
	SourceRegenerated Source = "regenerated"
	// SourceRetained means neither a stored draft nor a survey was available
	// and the in-memory draft was kept.
	SourceRetained Source = "retained"
	// SourceUnchanged means the input was not a reconciliation trigger.
	SourceUnchanged Source = "unchanged"
)

// Decision captures the outcome of one reconciliation.
type Decision struct {
	Key    string       `json:"key"`
	Source Source       `json:"source"`
	Lookup LookupStatus `json:"lookup,omitempty"`
	Epoch  uint64       `json:"epoch"`
}

// ToJSON serialises the decision for logging or transport helpers.
func (d Decision) ToJSON() ([]byte, error) {
	type alias Decision
	return json.Marshal(alias(d))
}

// DecisionFromJSON deserialises a payload produced by ToJSON.
func DecisionFromJSON(payload []byte) (Decision, error) {
	type alias Decision
	var decision alias
	if err := json.Unmarshal(payload, &decision); err != nil {
		return Decision{}, err
	}
	return Decision(decision), nil
}
