package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlayer/onboard/pkg/adapters/memory"
	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/session"
)

const testDebounce = 40 * time.Millisecond

// countingLocal wraps the in-memory local store and counts Set calls per key.
type countingLocal struct {
	*memory.LocalStore
	mu   sync.Mutex
	sets map[string]int
}

func newCountingLocal() *countingLocal {
	return &countingLocal{LocalStore: memory.NewLocalStore(), sets: make(map[string]int)}
}

func (c *countingLocal) Set(key, value string) error {
	c.mu.Lock()
	c.sets[key]++
	c.mu.Unlock()
	return c.LocalStore.Set(key, value)
}

func (c *countingLocal) setCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[key]
}

// flakyRemote wraps the in-memory remote store with failure injection and
// call counting.
type flakyRemote struct {
	*memory.RemoteStore
	saveErr    error
	restoreErr error
	saves      atomic.Int32
	restores   atomic.Int32
}

func newFlakyRemote() *flakyRemote {
	return &flakyRemote{RemoteStore: memory.NewRemoteStore()}
}

func (f *flakyRemote) Save(ctx context.Context, stepKey string, payload map[string]any, identity string, full *domain.Snapshot) error {
	f.saves.Add(1)
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.RemoteStore.Save(ctx, stepKey, payload, identity, full)
}

func (f *flakyRemote) RestoreByIdentity(ctx context.Context, identity string) (*domain.RemoteSnapshot, error) {
	f.restores.Add(1)
	if f.restoreErr != nil {
		return nil, f.restoreErr
	}
	return f.RemoteStore.RestoreByIdentity(ctx, identity)
}

// brokenLocal rejects every write, simulating a full or unavailable local
// cache.
type brokenLocal struct {
	*memory.LocalStore
	sets atomic.Int32
}

func newBrokenLocal() *brokenLocal {
	return &brokenLocal{LocalStore: memory.NewLocalStore()}
}

func (b *brokenLocal) Set(key, value string) error {
	b.sets.Add(1)
	return errors.New("local storage unavailable")
}

// safeBuffer is an io.Writer safe for the manager's timer goroutine.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func snap(step int, values map[string]any) *domain.Snapshot {
	answers := domain.NewAnswerSet()
	for k, v := range values {
		answers.Set(k, v)
	}
	return &domain.Snapshot{
		CurrentStep: step,
		Answers:     answers,
		FlowVariant: "new-business",
		SavedAt:     time.Now(),
	}
}

func TestManager_DebounceCollapse(t *testing.T) {
	local := newCountingLocal()
	m := session.NewManager("new-business", local, nil, session.WithDebounce(testDebounce))
	defer m.Close()

	// Three mutations well inside one debounce window.
	m.NoteMutation(snap(1, map[string]any{"businessDetails.name": "A"}), "business-details", nil)
	time.Sleep(5 * time.Millisecond)
	m.NoteMutation(snap(1, map[string]any{"businessDetails.name": "Ac"}), "business-details", nil)
	time.Sleep(5 * time.Millisecond)
	m.NoteMutation(snap(1, map[string]any{"businessDetails.name": "Acme"}), "business-details", nil)

	time.Sleep(4 * testDebounce)

	assert.Equal(t, 1, local.setCount("onboard:progress:new-business"),
		"rapid mutations collapse into one save")

	raw, err := local.Get("onboard:progress:new-business")
	require.NoError(t, err)
	var stored domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "Acme", stored.Answers.String("businessDetails.name"),
		"the save reflects the newest mutation")
}

func TestManager_RestoreSingleFlight(t *testing.T) {
	remote := newFlakyRemote()
	require.NoError(t, remote.RemoteStore.Save(context.Background(), "business-details",
		nil, "merchant-7", snap(2, map[string]any{"businessDetails.name": "Acme"})))

	m := session.NewManager("new-business", memory.NewLocalStore(), remote,
		session.WithIdentity("merchant-7"))
	defer m.Close()

	first, err := m.Restore(context.Background(), 4)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 2, first.CurrentStep)

	second, err := m.Restore(context.Background(), 4)
	require.NoError(t, err)
	assert.Same(t, first, second, "second restore returns the first result")
	assert.Equal(t, int32(1), remote.restores.Load(), "no additional I/O on repeat restore")
}

func TestManager_RestoreClampsStep(t *testing.T) {
	remote := newFlakyRemote()
	require.NoError(t, remote.RemoteStore.Save(context.Background(), "",
		nil, "merchant-7", snap(7, map[string]any{"businessDetails.name": "Acme"})))

	m := session.NewManager("existing-business", memory.NewLocalStore(), remote,
		session.WithIdentity("merchant-7"))
	defer m.Close()

	restored, err := m.Restore(context.Background(), 4)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, 4, restored.CurrentStep, "step 7 clamps into a 4-step flow")
}

func TestManager_RemoteFailureFallsBackToLocal(t *testing.T) {
	local := memory.NewLocalStore()
	progress, _ := json.Marshal(snap(3, map[string]any{"adminEmail": "ops@acme.example"}))
	require.NoError(t, local.Set("onboard:progress:new-business", string(progress)))

	remote := newFlakyRemote()
	remote.restoreErr = errors.New("remote down")

	m := session.NewManager("new-business", local, remote, session.WithIdentity("merchant-7"))
	defer m.Close()

	restored, err := m.Restore(context.Background(), 4)
	require.NoError(t, err, "remote failures never propagate")
	require.NotNil(t, restored)
	assert.Equal(t, 3, restored.CurrentStep)
	assert.Equal(t, "ops@acme.example", restored.Answers.String("adminEmail"))
}

func TestManager_UnauthenticatedSkipsRemote(t *testing.T) {
	remote := newFlakyRemote()
	m := session.NewManager("new-business", memory.NewLocalStore(), remote)
	defer m.Close()

	restored, err := m.Restore(context.Background(), 4)
	require.NoError(t, err)
	assert.Nil(t, restored, "nothing persisted anywhere: start fresh")
	assert.Equal(t, int32(0), remote.restores.Load(), "no identity, no remote call")
}

func TestManager_RestoreMergesStepData(t *testing.T) {
	remote := newFlakyRemote()
	// Only per-step payloads exist remotely, no merged snapshot.
	require.NoError(t, remote.RemoteStore.Save(context.Background(), "business-details",
		map[string]any{"businessDetails.name": "Acme"}, "merchant-7", nil))
	require.NoError(t, remote.RemoteStore.Save(context.Background(), "admin-contact",
		map[string]any{"adminEmail": "ops@acme.example"}, "merchant-7", nil))

	m := session.NewManager("new-business", memory.NewLocalStore(), remote,
		session.WithIdentity("merchant-7"))
	defer m.Close()

	restored, err := m.Restore(context.Background(), 4)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, "Acme", restored.Answers.String("businessDetails.name"))
	assert.Equal(t, "ops@acme.example", restored.Answers.String("adminEmail"))
	assert.Equal(t, 1, restored.CurrentStep, "a step-map-only snapshot restores at step 1")
}

func TestManager_LocalAnswersFallback(t *testing.T) {
	local := memory.NewLocalStore()
	answers, _ := json.Marshal(map[string]any{"adminEmail": "ops@acme.example"})
	require.NoError(t, local.Set("onboard:answers", string(answers)))

	m := session.NewManager("new-business", local, nil)
	defer m.Close()

	restored, err := m.Restore(context.Background(), 4)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, 1, restored.CurrentStep)
	assert.Equal(t, "ops@acme.example", restored.Answers.String("adminEmail"))
}

func TestManager_ClearCancelsPendingSave(t *testing.T) {
	local := newCountingLocal()
	remote := newFlakyRemote()
	m := session.NewManager("new-business", local, remote,
		session.WithIdentity("merchant-7"),
		session.WithDebounce(testDebounce))
	defer m.Close()

	m.NoteMutation(snap(4, map[string]any{"termsAccepted": true}), "review", nil)
	require.NoError(t, m.Clear(context.Background()))

	time.Sleep(4 * testDebounce)

	assert.Equal(t, 0, local.setCount("onboard:progress:new-business"),
		"a cleared session must not be resurrected by a stale save")
	assert.Equal(t, int32(0), remote.saves.Load())
	_, err := local.Get("onboard:progress:new-business")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestManager_RemoteSaveFailureIsSilent(t *testing.T) {
	local := newCountingLocal()
	remote := newFlakyRemote()
	remote.saveErr = errors.New("remote down")

	m := session.NewManager("new-business", local, remote,
		session.WithIdentity("merchant-7"),
		session.WithDebounce(testDebounce))
	defer m.Close()

	m.NoteMutation(snap(1, map[string]any{"businessDetails.name": "Acme"}), "business-details", nil)
	time.Sleep(4 * testDebounce)

	assert.Equal(t, 1, local.setCount("onboard:progress:new-business"),
		"local tier still saves when remote is down")
}

func TestManager_LocalFailureDegradesGracefully(t *testing.T) {
	local := newBrokenLocal()
	remote := newFlakyRemote()
	logs := &safeBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))

	m := session.NewManager("new-business", local, remote,
		session.WithIdentity("merchant-7"),
		session.WithDebounce(testDebounce),
		session.WithLogger(logger))
	defer m.Close()

	m.NoteMutation(snap(1, map[string]any{"businessDetails.name": "Acme"}), "business-details", nil)
	time.Sleep(4 * testDebounce)

	// The session keeps running and the remote tier still gets the save.
	assert.GreaterOrEqual(t, remote.saves.Load(), int32(1),
		"a broken local tier must not stop remote saves")

	m.NoteMutation(snap(1, map[string]any{"businessDetails.name": "Acme Exports"}), "business-details", nil)
	time.Sleep(4 * testDebounce)

	assert.GreaterOrEqual(t, remote.saves.Load(), int32(2))
	assert.GreaterOrEqual(t, local.sets.Load(), int32(2),
		"every flush still attempts the local tier")
	assert.Equal(t, 1, strings.Count(logs.String(), "local auto-save unavailable"),
		"the degradation is warned exactly once")
}

func TestManager_CloseFlushesPending(t *testing.T) {
	local := newCountingLocal()
	m := session.NewManager("new-business", local, nil, session.WithDebounce(time.Hour))

	m.NoteMutation(snap(2, map[string]any{"businessDetails.name": "Acme"}), "business-details", nil)
	m.Close()

	assert.Equal(t, 1, local.setCount("onboard:progress:new-business"),
		"teardown flushes rather than dropping the last input")
}

func TestManager_SessionsDoNotInterfere(t *testing.T) {
	// Two concurrent sessions with separate managers: restoring one must
	// not mark the other as restored.
	remote := newFlakyRemote()
	require.NoError(t, remote.RemoteStore.Save(context.Background(), "",
		nil, "merchant-7", snap(2, map[string]any{"businessDetails.name": "Acme"})))

	a := session.NewManager("new-business", memory.NewLocalStore(), remote, session.WithIdentity("merchant-7"))
	b := session.NewManager("new-business", memory.NewLocalStore(), remote, session.WithIdentity("merchant-7"))
	defer a.Close()
	defer b.Close()

	_, err := a.Restore(context.Background(), 4)
	require.NoError(t, err)
	restored, err := b.Restore(context.Background(), 4)
	require.NoError(t, err)
	assert.NotNil(t, restored, "each manager owns its own restore guard")
	assert.Equal(t, int32(2), remote.restores.Load())
}
