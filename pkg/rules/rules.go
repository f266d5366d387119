// Package rules implements the per-field validation rule set: pure,
// side-effect-free predicates parameterized by jurisdiction and user
// classification. Unknown fields and unknown patterns are treated as valid
// (open-world default) so a misconfigured flow can never trap the user.
package rules

import (
	"regexp"
	"strings"

	"github.com/finlayer/onboard/pkg/domain"
)

// Context carries the session facts that adjust which fields are mandatory
// and which format rules apply.
type Context struct {
	// Country is the jurisdiction driving tax-ID and address rules.
	Country string

	// Classification tags the user's segment (e.g. "withGST",
	// "enterprise"); some flows make extra fields mandatory for it.
	Classification string
}

// Condition decides whether a field is required given the current answers
// and context. Conditions are compiled from flow configuration and must be
// pure.
type Condition func(answers domain.AnswerSet, ctx Context) bool

// Field is the validation descriptor for a single field path.
type Field struct {
	Path        string
	DisplayName string
	StepNumber  int

	// Required marks the field unconditionally mandatory. RequiredWhen,
	// if set, makes it mandatory only while the condition holds.
	Required     bool
	RequiredWhen Condition

	// Pattern names a format rule in the registry; empty means no format
	// check.
	Pattern string
}

// IsRequired reports whether the field must currently be answered.
func (f *Field) IsRequired(answers domain.AnswerSet, ctx Context) bool {
	if f.Required {
		return true
	}
	if f.RequiredWhen != nil {
		return f.RequiredWhen(answers, ctx)
	}
	return false
}

var (
	// India GST registration number: 2 digits, 5 letters, 4 digits,
	// 1 letter, 1 alphanumeric, literal "Z", 1 alphanumeric.
	gstinRe = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][A-Z0-9]Z[A-Z0-9]$`)

	// India permanent account number: 5 letters, 4 digits, 1 letter.
	panRe = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	nonDigitRe = regexp.MustCompile(`[^0-9]`)
)

// MatchPattern checks value against the named format rule. Unknown pattern
// names match everything.
func MatchPattern(name, value string) bool {
	switch name {
	case "gstin":
		return gstinRe.MatchString(value)
	case "pan":
		return panRe.MatchString(value)
	case "ein":
		// US employer ID: 9 digits once separators are stripped
		// ("12-3456789" and "123456789" both pass).
		return len(nonDigitRe.ReplaceAllString(value, "")) == 9
	case "email":
		return emailRe.MatchString(value)
	}
	return true
}

var patternMessages = map[string]string{
	"gstin": "Invalid GSTIN format",
	"pan":   "Invalid PAN format",
	"ein":   "Invalid EIN format",
	"email": "Invalid email address",
}

// PatternMessage returns the user-facing message for a failed format rule.
func PatternMessage(name string) string {
	if msg, ok := patternMessages[name]; ok {
		return msg
	}
	return "Invalid format"
}

var regionRequired = map[string]bool{
	"IN": true, "India": true,
	"US": true, "United States": true,
	"CA": true, "Canada": true,
	"AU": true, "Australia": true,
}

// RegionRequired reports whether the jurisdiction mandates a state/province
// answer.
func RegionRequired(country string) bool {
	return regionRequired[strings.TrimSpace(country)]
}

// Validate checks one field against the current answers. It returns nil when
// the field is valid and a *domain.ValidationError describing the first
// failure otherwise. A nil field descriptor (unknown path) is always valid.
func Validate(f *Field, answers domain.AnswerSet, ctx Context) *domain.ValidationError {
	if f == nil {
		return nil
	}

	value, present := answers.Get(f.Path)
	str, isString := value.(string)
	empty := !present || value == nil || (isString && strings.TrimSpace(str) == "")

	if empty {
		if f.IsRequired(answers, ctx) {
			return &domain.ValidationError{FieldPath: f.Path, Message: "Required"}
		}
		// Unanswered but optional is not an error.
		return nil
	}

	// Present but malformed blocks advancement even when optional.
	if f.Pattern != "" && isString && !MatchPattern(f.Pattern, str) {
		return &domain.ValidationError{FieldPath: f.Path, Message: PatternMessage(f.Pattern)}
	}

	return nil
}
