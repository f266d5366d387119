// Package flow holds the wizard step configuration: flow variants, the
// fields each step owns, display names, format rules and compiled
// requirement conditions. Both the readiness evaluator and the navigation
// engine read the same declarative field lists from here, so the two can
// never disagree about what a step requires.
package flow

import (
	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/rules"
)

// Flow is an immutable, compiled flow variant.
type Flow struct {
	variant      string
	countryField string
	termsField   string
	steps        []domain.StepDefinition
	fields       map[string]*rules.Field
	fieldOrder   map[string]int
	stepFields   map[string][]*rules.Field
}

// Variant returns the flow variant name.
func (f *Flow) Variant() string { return f.variant }

// Len returns the number of steps.
func (f *Flow) Len() int { return len(f.steps) }

// Steps returns the ordered step definitions.
func (f *Flow) Steps() []domain.StepDefinition {
	out := make([]domain.StepDefinition, len(f.steps))
	copy(out, f.steps)
	return out
}

// Step looks up a step by id.
func (f *Flow) Step(id string) (domain.StepDefinition, bool) {
	for _, s := range f.steps {
		if s.ID == id {
			return s, true
		}
	}
	return domain.StepDefinition{}, false
}

// StepByNumber looks up a step by its 1-based number.
func (f *Flow) StepByNumber(n int) (domain.StepDefinition, bool) {
	if n < 1 || n > len(f.steps) {
		return domain.StepDefinition{}, false
	}
	return f.steps[n-1], true
}

// Field returns the validation descriptor for a field path, or false for
// paths this flow does not know about.
func (f *Flow) Field(path string) (*rules.Field, bool) {
	fd, ok := f.fields[path]
	return fd, ok
}

// FieldOrder returns the global declared position of a field path, counting
// step-major across the whole flow. Used to keep error ordering stable.
func (f *Flow) FieldOrder(path string) (int, bool) {
	i, ok := f.fieldOrder[path]
	return i, ok
}

// FieldsOf returns the field descriptors a step owns, in declared order.
// Unknown step ids yield nil.
func (f *Flow) FieldsOf(stepID string) []*rules.Field {
	return f.stepFields[stepID]
}

// RequiredFields returns the subset of a step's fields that are currently
// mandatory given the answers and context. This is the single source of
// truth for "what blocks leaving this step".
func (f *Flow) RequiredFields(stepID string, answers domain.AnswerSet, ctx rules.Context) []*rules.Field {
	var out []*rules.Field
	for _, fd := range f.stepFields[stepID] {
		if fd.IsRequired(answers, ctx) {
			out = append(out, fd)
		}
	}
	return out
}

// TermsField is the path of the terms-acceptance flag gating submission.
func (f *Flow) TermsField() string { return f.termsField }

// Country resolves the session's jurisdiction from the answers.
func (f *Flow) Country(answers domain.AnswerSet) string {
	return answers.String(f.countryField)
}

// Context builds the rule-evaluation context for the current answers.
func (f *Flow) Context(answers domain.AnswerSet, classification string) rules.Context {
	return rules.Context{
		Country:        f.Country(answers),
		Classification: classification,
	}
}
