package graph

import (
	"fmt"
	"strings"

	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/flow"
)

// Overlay carries per-step display statuses to visualize on the diagram,
// indexed in step order.
type Overlay struct {
	Statuses []domain.StepStatus
}

// Mermaid produces a Mermaid flowchart of a flow's steps.
// It applies semantic styling:
// - First step: ((Circle))
// - Steps with conditionally required fields: [/Parallelogram/]
// - Final step: [[Subroutine]]
// - Default: [Rectangle]
// It also applies overlay styles (completed/active/error) if provided.
func Mermaid(f *flow.Flow, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	steps := f.Steps()
	for i, step := range steps {
		safeID := sanitizeMermaidID(step.ID)

		opener, closer := "[", "]"
		switch {
		case i == 0:
			opener, closer = "((", "))"
		case i == len(steps)-1:
			opener, closer = "[[", "]]"
		case hasConditionalFields(f, step.ID):
			opener, closer = "[/", "/]"
		}

		label := fmt.Sprintf("%d. %s", step.Number, step.Title)
		if n := len(step.Fields); n > 0 {
			label = fmt.Sprintf("%s <br/> %d fields", label, n)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		if i+1 < len(steps) {
			next := sanitizeMermaidID(steps[i+1].ID)
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, next))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for high-contrast regardless of theme.
		sb.WriteString("    classDef completed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef active fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef error fill:#ffebee,stroke:#b71c1c,stroke-width:2px,color:#000;\n")

		for i, step := range steps {
			if i >= len(overlay.Statuses) {
				break
			}
			switch overlay.Statuses[i] {
			case domain.StepCompleted:
				sb.WriteString(fmt.Sprintf("    class %s completed;\n", sanitizeMermaidID(step.ID)))
			case domain.StepActive:
				sb.WriteString(fmt.Sprintf("    class %s active;\n", sanitizeMermaidID(step.ID)))
			case domain.StepError:
				sb.WriteString(fmt.Sprintf("    class %s error;\n", sanitizeMermaidID(step.ID)))
			}
		}
	}

	return sb.String()
}

func hasConditionalFields(f *flow.Flow, stepID string) bool {
	for _, fd := range f.FieldsOf(stepID) {
		if fd.RequiredWhen != nil {
			return true
		}
	}
	return false
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
