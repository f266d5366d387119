package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlayer/onboard/internal/runtime"
	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/flow"
)

func validFirstStep(answers domain.AnswerSet) {
	answers.Set("businessDetails.name", "Acme Exports")
	answers.Set("businessDetails.country", "IN")
	answers.Set("businessDetails.state", "Karnataka")
}

func TestEngine_AdvanceGating(t *testing.T) {
	f := flow.NewBusiness()
	e := runtime.NewEngine(f)
	answers := domain.NewAnswerSet()
	ctx := context.Background()

	t.Run("blocked while fields missing", func(t *testing.T) {
		res := e.Advance(ctx, answers, f.Context(answers, ""))
		assert.False(t, res.Moved)
		assert.Equal(t, 1, res.Step)
		assert.Equal(t, 1, e.Current(), "a rejected advance leaves currentStep untouched")
		require.Len(t, res.Errors, 2)
		assert.Equal(t, "businessDetails.name", res.Errors[0].FieldPath)
		assert.Equal(t, "businessDetails.country", res.Errors[1].FieldPath)
	})

	t.Run("moves once satisfied", func(t *testing.T) {
		validFirstStep(answers)
		res := e.Advance(ctx, answers, f.Context(answers, ""))
		assert.True(t, res.Moved)
		assert.Equal(t, 2, res.Step)
		assert.Equal(t, 2, e.Current())
	})
}

func TestEngine_AdvanceBlockedErrorOrder(t *testing.T) {
	f := flow.NewBusiness()
	e := runtime.NewEngine(f)
	answers := domain.NewAnswerSet()
	ctx := context.Background()

	// Country present, name and state missing: errors must follow the
	// declared field order, name first.
	answers.Set("businessDetails.country", "US")
	res := e.Advance(ctx, answers, f.Context(answers, ""))

	require.False(t, res.Moved)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "businessDetails.name", res.Errors[0].FieldPath)
	assert.Equal(t, "businessDetails.state", res.Errors[1].FieldPath)
	require.NotEmpty(t, res.Fields)
	assert.Equal(t, "Business Name", res.Fields[0].DisplayName, "first entry is the go-to-error target")
}

func TestEngine_NoAdvancePastLastStep(t *testing.T) {
	f := flow.NewBusiness()
	e := runtime.NewEngine(f)
	ctx := context.Background()
	answers := domain.NewAnswerSet()

	e.GoToStep(ctx, f.Len())
	require.Equal(t, f.Len(), e.Current())

	res := e.Advance(ctx, answers, f.Context(answers, ""))
	assert.False(t, res.Moved, "the terminal step never auto-submits")
	assert.Equal(t, f.Len(), e.Current())
	assert.Empty(t, res.Errors)
}

func TestEngine_RetreatNeverBlocked(t *testing.T) {
	f := flow.NewBusiness()
	e := runtime.NewEngine(f)
	ctx := context.Background()

	// No answers at all: every step is invalid, retreat must not care.
	e.GoToStep(ctx, 3)
	assert.Equal(t, 2, e.Retreat(ctx))
	assert.Equal(t, 1, e.Retreat(ctx))
	assert.Equal(t, 1, e.Retreat(ctx), "retreat on step 1 is a no-op")
}

func TestEngine_GoToStepClamps(t *testing.T) {
	f := flow.NewBusiness()
	e := runtime.NewEngine(f)
	ctx := context.Background()

	assert.Equal(t, 4, e.GoToStep(ctx, 99))
	assert.Equal(t, 1, e.GoToStep(ctx, -5))
}

func TestEngine_SetCurrentClamps(t *testing.T) {
	f := flow.ExistingBusiness() // 3 steps
	e := runtime.NewEngine(f)
	ctx := context.Background()

	// A snapshot saved under a longer flow must clamp, never leave the
	// machine out of range.
	assert.Equal(t, 3, e.SetCurrent(ctx, 7))
	assert.Equal(t, 1, e.SetCurrent(ctx, 0))
}

func TestEngine_StatusDerivation(t *testing.T) {
	f := flow.NewBusiness()
	e := runtime.NewEngine(f)
	ctx := context.Background()
	answers := domain.NewAnswerSet()
	rctx := f.Context(answers, "")

	e.GoToStep(ctx, 2)
	assert.Equal(t, domain.StepCompleted, e.Status(1, answers, rctx))
	assert.Equal(t, domain.StepActive, e.Status(2, answers, rctx))
	assert.Equal(t, domain.StepUpcoming, e.Status(3, answers, rctx))
	assert.Equal(t, domain.StepUpcoming, e.Status(4, answers, rctx))
}

func TestEngine_StatusErrorAfterRejectedAdvance(t *testing.T) {
	f := flow.NewBusiness()
	e := runtime.NewEngine(f)
	ctx := context.Background()
	answers := domain.NewAnswerSet()
	rctx := f.Context(answers, "")

	assert.Equal(t, domain.StepActive, e.Status(1, answers, rctx), "fresh step starts active")

	res := e.Advance(ctx, answers, rctx)
	require.False(t, res.Moved)
	assert.Equal(t, domain.StepError, e.Status(1, answers, rctx))

	// Fixing the fields flips the status back without another attempt.
	validFirstStep(answers)
	rctx = f.Context(answers, "")
	assert.Equal(t, domain.StepActive, e.Status(1, answers, rctx))
}

func TestEngine_Hooks(t *testing.T) {
	f := flow.NewBusiness()
	var navigations []string
	var validationSteps []int

	e := runtime.NewEngine(f, runtime.WithHooks(domain.LifecycleHooks{
		OnNavigate: func(_ context.Context, ev *domain.NavigateEvent) {
			navigations = append(navigations, ev.Cause)
		},
		OnValidationError: func(_ context.Context, ev *domain.ValidationEvent) {
			validationSteps = append(validationSteps, ev.StepNumber)
		},
	}))

	ctx := context.Background()
	answers := domain.NewAnswerSet()

	e.Advance(ctx, answers, f.Context(answers, "")) // blocked
	validFirstStep(answers)
	e.Advance(ctx, answers, f.Context(answers, "")) // moves
	e.Retreat(ctx)
	e.GoToStep(ctx, 2)

	assert.Equal(t, []string{"advance", "retreat", "jump"}, navigations)
	assert.Equal(t, []int{1}, validationSteps)
}

func TestEngine_TwoPhaseFailClosed(t *testing.T) {
	f := flow.NewBusiness()
	e := runtime.NewEngine(f)
	ctx := context.Background()

	// Step 2 with registration on and a GSTIN that passes no field-level
	// requirement (absent = optional-valid is impossible here since the
	// toggle makes it required); instead exercise the cross-field check
	// directly: registered in India with a malformed GSTIN.
	answers := domain.NewAnswerSet()
	validFirstStep(answers)
	require.True(t, e.Advance(ctx, answers, f.Context(answers, "")).Moved)

	answers.Set("taxProfile.registered", true)
	answers.Set("taxProfile.pan", "ABCDE1234F")
	answers.Set("taxProfile.gstin", "29ABCDE1234F1Z") // 14 chars
	res := e.Advance(ctx, answers, f.Context(answers, ""))

	require.False(t, res.Moved)
	assert.Equal(t, 2, e.Current())
}
