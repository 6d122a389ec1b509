// Package state persists editable survey drafts and reconciles them with
// freshly generated surveys.
//
// Keys:
//
//	Ref.Identifier() derives the storage key from the survey prompt alone,
//	trimmed and lowercased: "survey:prompt:<prompt>". Surveys without a prompt
//	share the sentinel key "survey:last".
//
// Storage:
//
//	DraftStore layers a JSON codec over any Backend (MemoryBackend here, Redis,
//	SQL and Mongo backends in subpackages). It never returns errors: reads
//	degrade to a tagged Lookup, writes are logged and dropped.
//
// Reconciliation:
//
//	Session.Ingest restores a valid stored draft for the incoming key before
//	falling back to normalization, so edits survive remounts. Regenerate is
//	the explicit override. Every reconciliation and edit is autosaved under the
//	session's current key; pending writes for a previous key are dropped when
//	the key changes.
package state
