package flow

import (
	"fmt"
	"os"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/rules"
)

// Definition is the raw, declarative shape of a flow variant before
// compilation. It uses "mapstructure" tags to match the YAML keys.
type Definition struct {
	Variant      string       `json:"variant" mapstructure:"variant"`
	CountryField string       `json:"country_field" mapstructure:"countryField"`
	TermsField   string       `json:"terms_field" mapstructure:"termsField"`
	Steps        []StepConfig `json:"steps" mapstructure:"steps"`
}

// StepConfig declares one step and the fields it owns.
type StepConfig struct {
	ID          string        `json:"id" mapstructure:"id"`
	Number      int           `json:"number" mapstructure:"number"`
	Title       string        `json:"title" mapstructure:"title"`
	Description string        `json:"description" mapstructure:"description"`
	Fields      []FieldConfig `json:"fields" mapstructure:"fields"`
}

// FieldConfig declares one field: its display name, whether it is required
// (unconditionally or via a requiredWhen expression), and an optional named
// format rule.
type FieldConfig struct {
	Path         string `json:"path" mapstructure:"path"`
	DisplayName  string `json:"display_name" mapstructure:"displayName"`
	Required     bool   `json:"required" mapstructure:"required"`
	RequiredWhen string `json:"required_when" mapstructure:"requiredWhen"`
	Pattern      string `json:"pattern" mapstructure:"pattern"`
}

const (
	defaultCountryField = "businessDetails.country"
	defaultTermsField   = "termsAccepted"
)

var knownPatterns = map[string]bool{
	"gstin": true,
	"pan":   true,
	"ein":   true,
	"email": true,
}

// Parse decodes a YAML flow definition and compiles it.
func Parse(data []byte) (*Flow, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse flow yaml: %w", err)
	}

	var def Definition
	if err := mapstructure.Decode(raw, &def); err != nil {
		return nil, fmt.Errorf("failed to decode flow definition: %w", err)
	}

	return Compile(def)
}

// LoadFile reads and compiles a flow variant from a YAML file.
func LoadFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	return Parse(data)
}

// Compile validates a definition and produces an immutable Flow. It rejects
// duplicate step ids, step numbers out of sequence, duplicate field paths,
// unknown pattern names and unparseable requiredWhen expressions.
func Compile(def Definition) (*Flow, error) {
	if def.Variant == "" {
		return nil, fmt.Errorf("flow variant name is required")
	}
	if len(def.Steps) == 0 {
		return nil, fmt.Errorf("flow %q has no steps", def.Variant)
	}

	f := &Flow{
		variant:      def.Variant,
		countryField: def.CountryField,
		termsField:   def.TermsField,
		fields:       make(map[string]*rules.Field),
		fieldOrder:   make(map[string]int),
		stepFields:   make(map[string][]*rules.Field),
	}
	if f.countryField == "" {
		f.countryField = defaultCountryField
	}
	if f.termsField == "" {
		f.termsField = defaultTermsField
	}

	seenSteps := make(map[string]bool)
	order := 0

	for i, sc := range def.Steps {
		if sc.ID == "" {
			return nil, fmt.Errorf("flow %q: step %d has no id", def.Variant, i+1)
		}
		if seenSteps[sc.ID] {
			return nil, fmt.Errorf("flow %q: duplicate step id %q", def.Variant, sc.ID)
		}
		seenSteps[sc.ID] = true

		if sc.Number != 0 && sc.Number != i+1 {
			return nil, fmt.Errorf("flow %q: step %q has number %d, want %d", def.Variant, sc.ID, sc.Number, i+1)
		}

		step := domain.StepDefinition{
			ID:          sc.ID,
			Number:      i + 1,
			Title:       sc.Title,
			Description: sc.Description,
		}

		for _, fc := range sc.Fields {
			if fc.Path == "" {
				return nil, fmt.Errorf("flow %q: step %q has a field with no path", def.Variant, sc.ID)
			}
			if _, dup := f.fields[fc.Path]; dup {
				return nil, fmt.Errorf("flow %q: duplicate field path %q", def.Variant, fc.Path)
			}
			if fc.Pattern != "" && !knownPatterns[fc.Pattern] {
				return nil, fmt.Errorf("flow %q: field %q uses unknown pattern %q", def.Variant, fc.Path, fc.Pattern)
			}

			fd := &rules.Field{
				Path:        fc.Path,
				DisplayName: fc.DisplayName,
				StepNumber:  i + 1,
				Required:    fc.Required,
				Pattern:     fc.Pattern,
			}
			if fd.DisplayName == "" {
				fd.DisplayName = fc.Path
			}

			if fc.RequiredWhen != "" {
				cond, err := compileCondition(fc.RequiredWhen)
				if err != nil {
					return nil, fmt.Errorf("flow %q: field %q: %w", def.Variant, fc.Path, err)
				}
				fd.RequiredWhen = cond
			}

			step.Fields = append(step.Fields, fc.Path)
			f.fields[fc.Path] = fd
			f.fieldOrder[fc.Path] = order
			f.stepFields[sc.ID] = append(f.stepFields[sc.ID], fd)
			order++
		}

		f.steps = append(f.steps, step)
	}

	return f, nil
}

// MustCompile is Compile for definitions known good at build time.
func MustCompile(def Definition) *Flow {
	f, err := Compile(def)
	if err != nil {
		panic(err)
	}
	return f
}

// conditionEnv is the evaluation environment a requiredWhen expression sees.
// Conditions read answers through the answer/enabled helpers so an absent
// path never aborts evaluation.
func conditionEnv(answers domain.AnswerSet, ctx rules.Context) map[string]any {
	return map[string]any{
		"answers":        map[string]any(answers),
		"country":        ctx.Country,
		"classification": ctx.Classification,
		"answer": func(path string) any {
			v, _ := answers.Get(path)
			return v
		},
		"enabled": func(path string) bool {
			return answers.Bool(path)
		},
		"regionRequired": func(country string) bool {
			return rules.RegionRequired(country)
		},
	}
}

func compileCondition(src string) (rules.Condition, error) {
	program, err := expr.Compile(src,
		expr.Env(conditionEnv(domain.NewAnswerSet(), rules.Context{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid requiredWhen expression %q: %w", src, err)
	}
	return conditionFromProgram(program), nil
}

func conditionFromProgram(program *vm.Program) rules.Condition {
	return func(answers domain.AnswerSet, ctx rules.Context) bool {
		out, err := expr.Run(program, conditionEnv(answers, ctx))
		if err != nil {
			// A condition that cannot evaluate must not trap the
			// user: the field is treated as not required.
			return false
		}
		b, _ := out.(bool)
		return b
	}
}
