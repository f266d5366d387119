// Package runtime implements the step navigation state machine and the step
// readiness evaluator. The engine owns only the current step number; step
// statuses are derived on demand and never stored.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/finlayer/onboard/internal/logging"
	"github.com/finlayer/onboard/internal/presentation"
	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/flow"
	"github.com/finlayer/onboard/pkg/rules"
)

// Engine is the navigation state machine for one wizard session. It is not
// safe for concurrent use; callers serialize access.
type Engine struct {
	flow      *flow.Flow
	readiness *Readiness
	locator   *presentation.Locator
	hooks     domain.LifecycleHooks
	logger    *slog.Logger

	current int

	// attempted is true once an advance from the current step was
	// rejected; it resets on every transition. It distinguishes the
	// "error" status from a freshly entered "active" step.
	attempted bool
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// NewEngine creates a navigation engine positioned at step 1.
func NewEngine(f *flow.Flow, opts ...Option) *Engine {
	e := &Engine{
		flow:      f,
		readiness: NewReadiness(f),
		locator:   presentation.NewLocator(f),
		logger:    logging.NewNop(),
		current:   1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Current returns the 1-based current step number.
func (e *Engine) Current() int {
	return e.current
}

// Readiness exposes the step readiness evaluator.
func (e *Engine) Readiness() *Readiness {
	return e.readiness
}

// Advance attempts to move to the next step. On the last step it is a no-op
// (never an implicit submit). The transition is gated twice: every field the
// current step owns must validate, and the readiness evaluator must agree.
// If either phase fails, the step does not change and the result carries the
// blocking errors in declared field order.
func (e *Engine) Advance(ctx context.Context, answers domain.AnswerSet, rctx rules.Context) *domain.AdvanceResult {
	if e.current >= e.flow.Len() {
		return &domain.AdvanceResult{Moved: false, Step: e.current}
	}

	step, _ := e.flow.StepByNumber(e.current)

	// Phase 1: trigger validation on exactly the current step's fields.
	var errs []domain.ValidationError
	for _, fd := range e.flow.FieldsOf(step.ID) {
		if verr := rules.Validate(fd, answers, rctx); verr != nil {
			errs = append(errs, *verr)
		}
	}

	// Phase 2: business-rule re-check. Fail closed if the phases disagree.
	if len(errs) > 0 || !e.readiness.CanAdvance(step.ID, answers, rctx) {
		e.attempted = true
		formatted := e.locator.Format(errs)
		e.logger.Debug("advance blocked", "step", step.ID, "errors", len(errs))
		e.emitValidationError(ctx, step.Number, errs, formatted)
		return &domain.AdvanceResult{
			Moved:   false,
			Step:    e.current,
			Errors:  errs,
			Message: formatted.Message,
			Fields:  formatted.Fields,
		}
	}

	from := e.current
	e.current++
	e.attempted = false
	e.emitNavigate(ctx, from, e.current, "advance")
	return &domain.AdvanceResult{Moved: true, Step: e.current}
}

// Retreat moves one step back. It never validates; a user may always go
// back. On step 1 it is a no-op.
func (e *Engine) Retreat(ctx context.Context) int {
	if e.current <= 1 {
		return e.current
	}
	from := e.current
	e.current--
	e.attempted = false
	e.emitNavigate(ctx, from, e.current, "retreat")
	return e.current
}

// GoToStep jumps unconditionally to step n, clamped to [1, N]. Used for
// "edit this step" links and error navigation; validation is bypassed.
func (e *Engine) GoToStep(ctx context.Context, n int) int {
	n = e.clamp(n)
	if n == e.current {
		return e.current
	}
	from := e.current
	e.current = n
	e.attempted = false
	e.emitNavigate(ctx, from, e.current, "jump")
	return e.current
}

// SetCurrent positions the engine at a restored step, clamped to the active
// flow's range. Hosts use this once, when applying a persisted snapshot.
func (e *Engine) SetCurrent(ctx context.Context, n int) int {
	n = e.clamp(n)
	if n != e.current {
		from := e.current
		e.current = n
		e.attempted = false
		e.emitNavigate(ctx, from, e.current, "restore")
	}
	return e.current
}

// Status derives the display state of step n. Steps before the current one
// are completed and steps after it upcoming; the current step is "error"
// only when a rejected advance left failures that are still outstanding.
func (e *Engine) Status(n int, answers domain.AnswerSet, rctx rules.Context) domain.StepStatus {
	switch {
	case n < e.current:
		return domain.StepCompleted
	case n > e.current:
		return domain.StepUpcoming
	}

	if e.attempted {
		step, ok := e.flow.StepByNumber(n)
		if ok {
			for _, fd := range e.flow.FieldsOf(step.ID) {
				if rules.Validate(fd, answers, rctx) != nil {
					return domain.StepError
				}
			}
		}
	}
	return domain.StepActive
}

// Statuses derives the status of every step, in order.
func (e *Engine) Statuses(answers domain.AnswerSet, rctx rules.Context) []domain.StepStatus {
	out := make([]domain.StepStatus, e.flow.Len())
	for i := range out {
		out[i] = e.Status(i+1, answers, rctx)
	}
	return out
}

func (e *Engine) clamp(n int) int {
	if n < 1 {
		return 1
	}
	if n > e.flow.Len() {
		return e.flow.Len()
	}
	return n
}

func (e *Engine) emitNavigate(ctx context.Context, from, to int, cause string) {
	if e.hooks.OnNavigate == nil {
		return
	}
	e.hooks.OnNavigate(ctx, &domain.NavigateEvent{
		Timestamp: time.Now(),
		From:      from,
		To:        to,
		Cause:     cause,
	})
}

func (e *Engine) emitValidationError(ctx context.Context, stepNumber int, errs []domain.ValidationError, formatted presentation.Formatted) {
	if e.hooks.OnValidationError == nil {
		return
	}
	e.hooks.OnValidationError(ctx, &domain.ValidationEvent{
		Timestamp:  time.Now(),
		StepNumber: stepNumber,
		Errors:     errs,
		Message:    formatted.Message,
		Fields:     formatted.Fields,
	})
}
