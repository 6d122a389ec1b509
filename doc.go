// Package draft defines the editable survey draft model and the normalizer that
// maps generation service payloads onto it.
//
// Data flow:
//
//	RawSurvey -> Normalize -> Draft -> state.Session (restore, edit, autosave)
//
// Persistence, key derivation and reconciliation live in pkg/state; this
// package stays free of storage concerns.
package draft
