package domain

import "errors"

// ErrSnapshotNotFound is returned by stores when no snapshot exists for the
// requested key or identity.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrSubmissionBlocked is returned when Submit is attempted while the
// submission gate does not hold.
var ErrSubmissionBlocked = errors.New("submission blocked")

// ValidationError is a recoverable per-field failure. It blocks advancement
// only and is surfaced through hooks, never raised as a Go error.
type ValidationError struct {
	FieldPath string `json:"fieldPath"`
	Message   string `json:"message"`
}

// FieldMapping locates a failing field for the user: its display name and
// the step that owns it. Unknown fields fall back to the raw path and step 1.
type FieldMapping struct {
	FieldPath   string `json:"fieldPath"`
	DisplayName string `json:"displayName"`
	StepNumber  int    `json:"stepNumber"`
}

// AdvanceResult reports the outcome of an advance attempt. When the
// transition is rejected, Errors holds the blocking field failures in the
// step's declared field order, and Message/Fields carry the formatted
// description for the host UI.
type AdvanceResult struct {
	Moved   bool              `json:"moved"`
	Step    int               `json:"step"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  []FieldMapping    `json:"fields,omitempty"`
}
