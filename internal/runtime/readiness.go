package runtime

import (
	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/flow"
	"github.com/finlayer/onboard/pkg/rules"
)

// Readiness decides whether the active step may be left in the advance
// direction, and whether the wizard as a whole may be submitted.
type Readiness struct {
	flow *flow.Flow
}

// NewReadiness creates a readiness evaluator for one flow.
func NewReadiness(f *flow.Flow) *Readiness {
	return &Readiness{flow: f}
}

// CanAdvance reports whether every field the step owns is individually valid
// and the step's cross-field business rule holds. Unknown step ids never
// block: a misconfigured flow must not trap the user.
func (r *Readiness) CanAdvance(stepID string, answers domain.AnswerSet, ctx rules.Context) bool {
	for _, fd := range r.flow.FieldsOf(stepID) {
		if rules.Validate(fd, answers, ctx) != nil {
			return false
		}
	}

	switch stepID {
	case "tax-profile":
		// With registration toggled on, the jurisdiction-appropriate
		// tax ID must be present and well-formed.
		if answers.Bool("taxProfile.registered") {
			switch {
			case isIndia(ctx.Country):
				if !wellFormed(answers, "taxProfile.gstin", "gstin") {
					return false
				}
			case isUS(ctx.Country):
				if !wellFormed(answers, "taxProfile.ein", "ein") {
					return false
				}
			}
		}
	case "review":
		// Advancing past the terminal step is trivially allowed (it is
		// a no-op); submission is gated separately by CanSubmit.
		return true
	}

	return true
}

// CanSubmit reports whether final submission may proceed: the terms flag
// must be accepted and the entire answer set must be valid.
func (r *Readiness) CanSubmit(answers domain.AnswerSet, ctx rules.Context) bool {
	if !answers.Bool(r.flow.TermsField()) {
		return false
	}
	for _, step := range r.flow.Steps() {
		if !r.CanAdvance(step.ID, answers, ctx) {
			return false
		}
	}
	return true
}

func isIndia(country string) bool {
	return country == "IN" || country == "India"
}

func isUS(country string) bool {
	return country == "US" || country == "United States"
}

func wellFormed(answers domain.AnswerSet, path, pattern string) bool {
	s := answers.String(path)
	return s != "" && rules.MatchPattern(pattern, s)
}
