package domain

// StepStatus is the derived display state of a single wizard step. It is
// always computed from (currentStep, validation errors), never stored.
type StepStatus string

const (
	StepCompleted StepStatus = "completed" // Before the current step
	StepActive    StepStatus = "active"    // Current step, no outstanding errors
	StepError     StepStatus = "error"     // Current step with outstanding errors
	StepUpcoming  StepStatus = "upcoming"  // After the current step
)

// StepDefinition describes one step of a wizard flow. Steps are immutable
// for the lifetime of a session; the ordered sequence of definitions is the
// flow configuration.
type StepDefinition struct {
	// ID is the stable identifier of the step (e.g. "tax-profile").
	ID string

	// Number is the 1-based position. It must equal slice index + 1.
	Number int

	Title       string
	Description string

	// Fields lists the dot-delimited paths this step owns, in declared
	// order. Declared order drives error ordering, never map iteration.
	Fields []string
}
