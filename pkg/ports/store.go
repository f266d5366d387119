package ports

import (
	"context"

	"github.com/finlayer/onboard/pkg/domain"
)

// LocalStore is the fast persistence tier: a synchronous key-value string
// store scoped to the host environment. Writes are ordered; a Set either
// fully replaces the value under key or fails without partial effect.
type LocalStore interface {
	// Get returns the value for key.
	// Returns domain.ErrSnapshotNotFound if the key is absent.
	Get(key string) (string, error)

	// Set stores value under key, replacing any previous value atomically.
	Set(key, value string) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(key string) error
}

// RemoteStore is the durable persistence tier. Saves are best-effort: a
// failure is logged by the caller and never blocks the wizard.
type RemoteStore interface {
	// Save persists the payload for one step plus the full snapshot,
	// keyed by the caller's identity.
	Save(ctx context.Context, stepKey string, payload map[string]any, identity string, full *domain.Snapshot) error

	// RestoreByIdentity retrieves the most recent remote snapshot. The
	// result carries either a merged FormData answer set or a per-step
	// StepData map for the caller to merge.
	// Returns domain.ErrSnapshotNotFound if nothing was saved.
	RestoreByIdentity(ctx context.Context, identity string) (*domain.RemoteSnapshot, error)

	// Delete removes all remote data for the identity.
	Delete(ctx context.Context, identity string) error
}
