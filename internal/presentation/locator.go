// Package presentation turns raw field-level validation failures into a
// human-navigable description: display names, owning steps and a single
// aggregate message.
package presentation

import (
	"sort"
	"strings"

	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/flow"
)

// Messages used when aggregating errors.
const (
	genericMessage     = "Please review the highlighted fields"
	multiErrorPrefix   = "Please complete the following fields: "
	fallbackStepNumber = 1
)

// Formatted is the output of the locator: one aggregate message plus the
// ordered field mappings. The first entry of Fields is the navigation target
// for "go to error" actions.
type Formatted struct {
	Message string               `json:"message"`
	Fields  []domain.FieldMapping `json:"fields"`
}

// Locator maps field paths to display names and owning steps using the flow
// configuration.
type Locator struct {
	flow *flow.Flow
}

// NewLocator creates a locator for one flow.
func NewLocator(f *flow.Flow) *Locator {
	return &Locator{flow: f}
}

// Locate resolves a single field path. Paths the flow does not know fall
// back to the raw path as display name and step 1 as location.
func (l *Locator) Locate(path string) domain.FieldMapping {
	if fd, ok := l.flow.Field(path); ok {
		return domain.FieldMapping{
			FieldPath:   path,
			DisplayName: fd.DisplayName,
			StepNumber:  fd.StepNumber,
		}
	}
	return domain.FieldMapping{
		FieldPath:   path,
		DisplayName: path,
		StepNumber:  fallbackStepNumber,
	}
}

// Format aggregates a set of validation errors. Ordering follows the flow's
// declared field order, never map iteration order; unknown paths keep their
// relative order after all known ones.
func (l *Locator) Format(errors []domain.ValidationError) Formatted {
	if len(errors) == 0 {
		return Formatted{Message: genericMessage}
	}

	ordered := make([]domain.ValidationError, len(errors))
	copy(ordered, errors)
	sort.SliceStable(ordered, func(i, j int) bool {
		return l.position(ordered[i].FieldPath) < l.position(ordered[j].FieldPath)
	})

	fields := make([]domain.FieldMapping, 0, len(ordered))
	for _, e := range ordered {
		fields = append(fields, l.Locate(e.FieldPath))
	}

	if len(ordered) == 1 {
		return Formatted{
			Message: fields[0].DisplayName + ": " + ordered[0].Message,
			Fields:  fields,
		}
	}

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.DisplayName
	}
	return Formatted{
		Message: multiErrorPrefix + strings.Join(names, ", "),
		Fields:  fields,
	}
}

func (l *Locator) position(path string) int {
	if i, ok := l.flow.FieldOrder(path); ok {
		return i
	}
	// Unknown fields sort after every declared one.
	return int(^uint(0) >> 1)
}
