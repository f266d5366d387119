package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/finlayer/onboard/internal/logging"
	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/ports"
)

// DefaultDebounce is the inactivity window before a mutation is flushed.
const DefaultDebounce = time.Second

const (
	progressKeyPrefix = "onboard:progress:"
	answersKey        = "onboard:answers"
)

// Manager keeps one wizard session resumable. All restore bookkeeping is
// owned by the instance, so concurrent sessions (e.g. in tests) never
// interfere through shared globals.
type Manager struct {
	local    ports.LocalStore
	remote   ports.RemoteStore
	variant  string
	identity string
	debounce time.Duration
	logger   *slog.Logger
	hooks    domain.LifecycleHooks

	mu          sync.Mutex
	timer       *time.Timer
	pending     *pendingSave
	cleared     bool
	closed      bool
	localWarned bool

	restoreMu sync.Mutex
	restored  bool
	result    *domain.Snapshot
}

type pendingSave struct {
	snapshot *domain.Snapshot
	stepKey  string
	payload  map[string]any
}

// Option configures the Manager.
type Option func(*Manager)

// WithDebounce overrides the auto-save inactivity window.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// WithIdentity marks the session authenticated. Remote saves and restores
// only happen for authenticated sessions.
func WithIdentity(identity string) Option {
	return func(m *Manager) {
		m.identity = identity
	}
}

// WithLogger configures a logger for persistence events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHooks registers persistence lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// NewManager creates a persistence manager for one flow variant. The remote
// store may be nil, in which case only the local tier is used.
func NewManager(variant string, local ports.LocalStore, remote ports.RemoteStore, opts ...Option) *Manager {
	m := &Manager{
		local:    local,
		remote:   remote,
		variant:  variant,
		debounce: DefaultDebounce,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) progressKey() string {
	return progressKeyPrefix + m.variant
}

// NoteMutation (re)starts the debounce timer with the latest snapshot.
// Rapid successive mutations collapse into one save of the newest state.
func (m *Manager) NoteMutation(snapshot *domain.Snapshot, stepKey string, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.cleared = false
	m.pending = &pendingSave{snapshot: snapshot, stepKey: stepKey, payload: payload}

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.flush)
}

// Flush saves any pending snapshot immediately, bypassing the debounce.
// Unlike the timer path, the remote save completes before Flush returns, so
// teardown does not race a detached write.
func (m *Manager) Flush() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
	m.flushWith(true)
}

func (m *Manager) flush() {
	m.flushWith(false)
}

func (m *Manager) flushWith(wait bool) {
	m.mu.Lock()
	if m.cleared || m.pending == nil {
		m.mu.Unlock()
		return
	}
	save := m.pending
	m.pending = nil
	m.mu.Unlock()

	// Local tier first, synchronously. A local failure degrades the
	// session (no auto-save) but never blocks it; warn once.
	if err := m.saveLocal(save.snapshot); err != nil {
		m.warnLocalOnce(err)
	} else {
		m.emitSaved(save.snapshot.CurrentStep, "local")
	}

	// Remote tier is best-effort and, on the timer path, asynchronous:
	// it must never block navigation or surface as a user-facing error.
	if wait {
		m.saveRemote(save)
	} else {
		go m.saveRemote(save)
	}
}

func (m *Manager) saveLocal(snapshot *domain.Snapshot) error {
	progress, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := m.local.Set(m.progressKey(), string(progress)); err != nil {
		return fmt.Errorf("failed to write progress record: %w", err)
	}

	answers, err := json.Marshal(snapshot.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}
	if err := m.local.Set(answersKey, string(answers)); err != nil {
		return fmt.Errorf("failed to write answers record: %w", err)
	}
	return nil
}

func (m *Manager) saveRemote(save *pendingSave) {
	if m.remote == nil || m.identity == "" {
		return
	}

	m.mu.Lock()
	cleared := m.cleared
	m.mu.Unlock()
	if cleared {
		// The session was submitted while this save was pending; a
		// stale write must not resurrect the cleared snapshot.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.remote.Save(ctx, save.stepKey, save.payload, m.identity, save.snapshot); err != nil {
		m.logger.Warn("remote save failed, local snapshot remains authoritative", "err", err)
		return
	}
	m.emitSaved(save.snapshot.CurrentStep, "remote")
}

func (m *Manager) warnLocalOnce(err error) {
	m.mu.Lock()
	warned := m.localWarned
	m.localWarned = true
	m.mu.Unlock()
	if !warned {
		m.logger.Warn("local auto-save unavailable, session continues without it", "err", err)
	}
}

// Restore retrieves the most authoritative snapshot available: remote first
// when the session is authenticated, else the local progress record, else
// the generic answers record. The restored step is clamped to [1, stepCount]
// for the current flow. Restore is single-flight per session: a second call
// returns the first call's result and performs no additional I/O.
func (m *Manager) Restore(ctx context.Context, stepCount int) (*domain.Snapshot, error) {
	m.restoreMu.Lock()
	defer m.restoreMu.Unlock()

	if m.restored {
		return m.result, nil
	}
	m.restored = true

	snapshot := m.restoreRemote(ctx)
	if snapshot == nil {
		snapshot = m.restoreLocal()
	}

	if snapshot != nil {
		snapshot.CurrentStep = clampStep(snapshot.CurrentStep, stepCount)
		m.emitRestored(ctx, snapshot.CurrentStep)
	}

	m.result = snapshot
	return snapshot, nil
}

func (m *Manager) restoreRemote(ctx context.Context) *domain.Snapshot {
	if m.remote == nil || m.identity == "" {
		return nil
	}

	rs, err := m.remote.RestoreByIdentity(ctx, m.identity)
	if err != nil {
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			m.logger.Warn("remote restore failed, falling back to local cache", "err", err)
		}
		return nil
	}

	answers := domain.NewAnswerSet()
	switch {
	case len(rs.FormData) > 0:
		answers.Merge(rs.FormData)
	case len(rs.StepData) > 0:
		// Only per-step maps came back; merge them in a stable order.
		keys := make([]string, 0, len(rs.StepData))
		for k := range rs.StepData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			answers.Merge(rs.StepData[k])
		}
	default:
		return nil
	}

	return &domain.Snapshot{
		CurrentStep: rs.CurrentStep,
		Answers:     answers,
		FlowVariant: m.variant,
	}
}

func (m *Manager) restoreLocal() *domain.Snapshot {
	if raw, err := m.local.Get(m.progressKey()); err == nil {
		var snapshot domain.Snapshot
		if jsonErr := json.Unmarshal([]byte(raw), &snapshot); jsonErr == nil {
			if snapshot.Answers == nil {
				snapshot.Answers = domain.NewAnswerSet()
			}
			return &snapshot
		}
		m.logger.Warn("discarding unreadable local progress record")
	} else if !errors.Is(err, domain.ErrSnapshotNotFound) {
		m.logger.Warn("local restore failed", "err", err)
	}

	if raw, err := m.local.Get(answersKey); err == nil {
		answers := domain.NewAnswerSet()
		if jsonErr := json.Unmarshal([]byte(raw), &answers); jsonErr == nil {
			return &domain.Snapshot{CurrentStep: 1, Answers: answers, FlowVariant: m.variant}
		}
		m.logger.Warn("discarding unreadable local answers record")
	}

	return nil
}

// Clear cancels any pending debounced save and deletes both tiers. Callers
// run it before showing success UI, so an immediate reload cannot resurrect
// stale answers.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.pending = nil
	m.cleared = true
	m.mu.Unlock()

	var errs []error
	if err := m.local.Delete(m.progressKey()); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear progress record: %w", err))
	}
	if err := m.local.Delete(answersKey); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear answers record: %w", err))
	}
	if m.remote != nil && m.identity != "" {
		if err := m.remote.Delete(ctx, m.identity); err != nil {
			errs = append(errs, fmt.Errorf("failed to clear remote snapshot: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close tears the session down: any pending save is flushed so a later
// resume does not lose the last few seconds of input, then the timer is
// released. The manager must not be used afterwards.
func (m *Manager) Close() {
	m.Flush()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) emitSaved(step int, tier string) {
	if m.hooks.OnSaved == nil {
		return
	}
	m.hooks.OnSaved(context.Background(), &domain.PersistEvent{
		Timestamp:   time.Now(),
		CurrentStep: step,
		Tier:        tier,
	})
}

func (m *Manager) emitRestored(ctx context.Context, step int) {
	if m.hooks.OnRestored == nil {
		return
	}
	m.hooks.OnRestored(ctx, &domain.PersistEvent{
		Timestamp:   time.Now(),
		CurrentStep: step,
		Tier:        "restore",
	})
}

func clampStep(n, max int) int {
	if n < 1 {
		return 1
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
