package onboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/finlayer/onboard/internal/logging"
	"github.com/finlayer/onboard/internal/runtime"
	"github.com/finlayer/onboard/pkg/adapters/memory"
	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/flow"
	"github.com/finlayer/onboard/pkg/ports"
	"github.com/finlayer/onboard/pkg/rules"
	"github.com/finlayer/onboard/pkg/session"
)

// Wizard is the high-level entry point for one onboarding session. It wires
// the navigation engine to the persistence manager and provides a simplified
// API for hosts. Safe for concurrent use.
type Wizard struct {
	flow   *flow.Flow
	engine *runtime.Engine
	store  *session.Manager
	logger *slog.Logger

	classification string

	mu       sync.Mutex
	answers  domain.AnswerSet
	restored bool
}

type config struct {
	logger         *slog.Logger
	hooks          domain.LifecycleHooks
	local          ports.LocalStore
	remote         ports.RemoteStore
	identity       string
	classification string
	debounce       time.Duration
}

// Option defines a functional option for configuring the Wizard.
type Option func(*config)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithHooks registers lifecycle callbacks for navigation, validation and
// persistence events.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = hooks
	}
}

// WithLocalStore sets the fast local persistence tier. Defaults to an
// in-memory store.
func WithLocalStore(store ports.LocalStore) Option {
	return func(c *config) {
		c.local = store
	}
}

// WithRemoteStore sets the durable remote tier. Without one, only the local
// tier is used.
func WithRemoteStore(store ports.RemoteStore) Option {
	return func(c *config) {
		c.remote = store
	}
}

// WithIdentity marks the session authenticated; remote saves and restores
// are keyed by this identity.
func WithIdentity(identity string) Option {
	return func(c *config) {
		c.identity = identity
	}
}

// WithClassification tags the user's segment, which can make extra fields
// mandatory per the flow configuration.
func WithClassification(classification string) Option {
	return func(c *config) {
		c.classification = classification
	}
}

// WithDebounce overrides the auto-save inactivity window.
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		c.debounce = d
	}
}

// New creates a wizard session for the given flow, positioned at step 1.
func New(f *flow.Flow, opts ...Option) *Wizard {
	cfg := &config{
		logger:   logging.NewNop(),
		debounce: session.DefaultDebounce,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.local == nil {
		cfg.local = memory.NewLocalStore()
	}

	return &Wizard{
		flow: f,
		engine: runtime.NewEngine(f,
			runtime.WithLogger(cfg.logger),
			runtime.WithHooks(cfg.hooks),
		),
		store: session.NewManager(f.Variant(), cfg.local, cfg.remote,
			session.WithIdentity(cfg.identity),
			session.WithDebounce(cfg.debounce),
			session.WithLogger(cfg.logger),
			session.WithHooks(cfg.hooks),
		),
		logger:         cfg.logger,
		classification: cfg.classification,
		answers:        domain.NewAnswerSet(),
	}
}

// Flow returns the active flow configuration.
func (w *Wizard) Flow() *flow.Flow {
	return w.flow
}

// CurrentStep returns the 1-based current step number.
func (w *Wizard) CurrentStep() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.engine.Current()
}

// SetAnswer records one answer and schedules a debounced save.
func (w *Wizard) SetAnswer(path string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.answers.Set(path, value)
	w.scheduleSave()
}

// SetAnswers records a batch of answers under one debounced save.
func (w *Wizard) SetAnswers(values map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, value := range values {
		w.answers.Set(path, value)
	}
	w.scheduleSave()
}

// Answer returns the value at a field path.
func (w *Wizard) Answer(path string) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.answers.Get(path)
}

// Answers returns a copy of the full answer set.
func (w *Wizard) Answers() domain.AnswerSet {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.answers.Clone()
}

// Advance attempts to move to the next step. The result reports whether the
// step changed and, when blocked, which fields are at fault.
func (w *Wizard) Advance(ctx context.Context) *domain.AdvanceResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	res := w.engine.Advance(ctx, w.answers, w.ruleContext())
	if res.Moved {
		w.scheduleSave()
	}
	return res
}

// Retreat moves one step back. It never validates.
func (w *Wizard) Retreat(ctx context.Context) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.engine.Retreat(ctx)
	w.scheduleSave()
	return n
}

// GoToStep jumps to step n unconditionally, clamped to the flow's range.
func (w *Wizard) GoToStep(ctx context.Context, n int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	step := w.engine.GoToStep(ctx, n)
	w.scheduleSave()
	return step
}

// Status derives the display state of step n.
func (w *Wizard) Status(n int) domain.StepStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.engine.Status(n, w.answers, w.ruleContext())
}

// Statuses derives the status of every step, in order.
func (w *Wizard) Statuses() []domain.StepStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.engine.Statuses(w.answers, w.ruleContext())
}

// Progress reports completed steps as a percentage of the flow.
func (w *Wizard) Progress() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return float64(w.engine.Current()-1) / float64(w.flow.Len()) * 100
}

// CanSubmit reports whether final submission may proceed: terms accepted and
// every field in the flow valid.
func (w *Wizard) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.engine.Readiness().CanSubmit(w.answers, w.ruleContext())
}

// Submit finishes the wizard. Both persistence tiers are cleared before
// Submit returns, so an immediate reload cannot resurrect stale answers; any
// pending debounced save is cancelled. Returns domain.ErrSubmissionBlocked
// if the submission gate does not hold.
func (w *Wizard) Submit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.engine.Readiness().CanSubmit(w.answers, w.ruleContext()) {
		return domain.ErrSubmissionBlocked
	}

	if err := w.store.Clear(ctx); err != nil {
		return err
	}
	w.logger.Info("wizard submitted", "flow", w.flow.Variant())
	return nil
}

// Restore applies the most authoritative persisted snapshot, if any: the
// whole answer set in one batched update plus the saved step, clamped to
// this flow's range. Restore is idempotent; a repeat call reports the first
// outcome without touching the session again, so answers entered and
// navigation performed since the first restore survive. It reports whether
// a snapshot was applied.
func (w *Wizard) Restore(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.restored {
		return true, nil
	}

	snapshot, err := w.store.Restore(ctx, w.flow.Len())
	if err != nil || snapshot == nil {
		return false, err
	}

	w.answers = snapshot.Answers.Clone()
	w.engine.SetCurrent(ctx, snapshot.CurrentStep)
	w.restored = true
	return true, nil
}

// Close tears the session down, flushing any pending save.
func (w *Wizard) Close() {
	w.store.Close()
}

// scheduleSave hands the latest full snapshot to the persistence manager.
// Callers hold w.mu.
func (w *Wizard) scheduleSave() {
	current := w.engine.Current()
	snapshot := &domain.Snapshot{
		CurrentStep: current,
		Answers:     w.answers.Clone(),
		FlowVariant: w.flow.Variant(),
		SavedAt:     time.Now(),
	}

	stepKey := ""
	payload := make(map[string]any)
	if step, ok := w.flow.StepByNumber(current); ok {
		stepKey = step.ID
		for _, path := range step.Fields {
			if v, present := w.answers.Get(path); present {
				payload[path] = v
			}
		}
	}

	w.store.NoteMutation(snapshot, stepKey, payload)
}

func (w *Wizard) ruleContext() rules.Context {
	return w.flow.Context(w.answers, w.classification)
}
