package domain

import "time"

// Snapshot is a complete, atomically written copy of the answer set plus the
// navigation position. Two snapshots may exist concurrently (local, remote);
// remote wins when both are present and the session is authenticated.
type Snapshot struct {
	CurrentStep int       `json:"currentStep"`
	Answers     AnswerSet `json:"formData"`
	FlowVariant string    `json:"flowType"`
	SavedAt     time.Time `json:"lastSaved"`
}

// RemoteSnapshot is what a remote restore yields. Either FormData is the
// merged answer set, or only StepData (a per-step answer map) is present and
// the caller merges the step maps itself.
type RemoteSnapshot struct {
	CurrentStep int                       `json:"currentStep"`
	FormData    map[string]any            `json:"formData,omitempty"`
	StepData    map[string]map[string]any `json:"stepData,omitempty"`
}
