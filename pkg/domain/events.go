package domain

import (
	"context"
	"time"
)

// NavigateEvent is emitted after a successful step transition.
type NavigateEvent struct {
	Timestamp time.Time `json:"timestamp"`
	From      int       `json:"from"`
	To        int       `json:"to"`

	// Cause is one of "advance", "retreat", "jump", "restore".
	Cause string `json:"cause"`
}

// ValidationEvent is emitted when an advance attempt is rejected.
type ValidationEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	StepNumber int               `json:"stepNumber"`
	Errors     []ValidationError `json:"errors"`
	Message    string            `json:"message"`
	Fields     []FieldMapping    `json:"fields"`
}

// PersistEvent is emitted after a save or restore completed.
type PersistEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	CurrentStep int       `json:"currentStep"`

	// Tier is "local" or "remote".
	Tier string `json:"tier"`
}

// LifecycleHooks defines optional callbacks the host UI registers to react
// to wizard transitions. Nil callbacks are skipped.
type LifecycleHooks struct {
	OnNavigate        func(context.Context, *NavigateEvent)
	OnValidationError func(context.Context, *ValidationEvent)
	OnSaved           func(context.Context, *PersistEvent)
	OnRestored        func(context.Context, *PersistEvent)
}
