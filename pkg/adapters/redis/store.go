// Package redis implements the remote persistence tier on Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finlayer/onboard/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.RemoteStore using Redis. Each identity owns two
// keys: the full snapshot and a hash of per-step payloads. Both are written
// in one pipeline so a restore sees either the old or the new snapshot,
// never a mix.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for saved snapshots.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "onboard:wizard:",
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) snapshotKey(identity string) string {
	return s.prefix + identity + ":snapshot"
}

func (s *Store) stepsKey(identity string) string {
	return s.prefix + identity + ":steps"
}

// Save persists the full snapshot and the step payload atomically.
func (s *Store) Save(ctx context.Context, stepKey string, payload map[string]any, identity string, full *domain.Snapshot) error {
	snapshot, err := json.Marshal(full)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.snapshotKey(identity), snapshot, s.ttl)

	if stepKey != "" {
		stepData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal step payload: %w", err)
		}
		pipe.HSet(ctx, s.stepsKey(identity), stepKey, stepData)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.stepsKey(identity), s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// RestoreByIdentity loads the snapshot. If only per-step payloads survive
// (e.g. a snapshot written by an older console build), they are returned as
// StepData for the caller to merge.
func (s *Store) RestoreByIdentity(ctx context.Context, identity string) (*domain.RemoteSnapshot, error) {
	raw, err := s.client.Get(ctx, s.snapshotKey(identity)).Result()
	if err == nil {
		var snapshot domain.Snapshot
		if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		return &domain.RemoteSnapshot{
			CurrentStep: snapshot.CurrentStep,
			FormData:    snapshot.Answers,
		}, nil
	}
	if err != backend.Nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	steps, err := s.client.HGetAll(ctx, s.stepsKey(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get step data from redis: %w", err)
	}
	if len(steps) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}

	stepData := make(map[string]map[string]any, len(steps))
	for key, raw := range steps {
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step %s: %w", key, err)
		}
		stepData[key] = payload
	}
	return &domain.RemoteSnapshot{StepData: stepData}, nil
}

// Delete removes all persisted data for the identity.
func (s *Store) Delete(ctx context.Context, identity string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.snapshotKey(identity))
	pipe.Del(ctx, s.stepsKey(identity))
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
