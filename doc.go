/*
Package onboard drives a multi-step business-onboarding wizard: which step
is active, whether the user may advance, which fields block advancement, and
how in-progress answers survive reloads and re-authentication.

The engine is organized around five pieces:

  - pkg/rules: pure per-field validation (requirement + jurisdiction-specific
    format rules).
  - pkg/flow: declarative flow variants — ordered steps, the fields each step
    owns, display names and compiled requirement conditions.
  - internal/runtime: the navigation state machine and the step readiness
    evaluator that gates it.
  - internal/presentation: the error locator, mapping raw field failures to
    display names, owning steps and one aggregate message.
  - pkg/session: the persistence adapter — debounced two-tier auto-save and
    single-flight restore.

A minimal session:

	w := onboard.New(flow.NewBusiness())
	w.SetAnswer("businessDetails.name", "Acme Exports")
	w.SetAnswer("businessDetails.country", "IN")
	w.SetAnswer("businessDetails.state", "KA")
	res := w.Advance(ctx)
	if !res.Moved {
		fmt.Println(res.Message)
	}

Rendering of the step screens, transport and notification display are the
host's concern; the engine only emits structured events through
domain.LifecycleHooks.
*/
package onboard
