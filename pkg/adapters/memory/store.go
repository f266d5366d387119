// Package memory provides in-memory implementations of the persistence
// ports. They back tests and hosts that do not need durability.
package memory

import (
	"context"
	"sync"

	"github.com/finlayer/onboard/pkg/domain"
)

// LocalStore implements ports.LocalStore with a plain map.
// Safe for concurrent use.
type LocalStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewLocalStore creates an empty local store.
func NewLocalStore() *LocalStore {
	return &LocalStore{data: make(map[string]string)}
}

// Get returns the value for key.
func (s *LocalStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return "", domain.ErrSnapshotNotFound
	}
	return value, nil
}

// Set stores value under key.
func (s *LocalStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Delete removes the key.
func (s *LocalStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Len reports the number of stored keys.
func (s *LocalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

type remoteRecord struct {
	snapshot *domain.Snapshot
	steps    map[string]map[string]any
}

// RemoteStore implements ports.RemoteStore in memory, keyed by identity.
// Safe for concurrent use.
type RemoteStore struct {
	mu   sync.RWMutex
	data map[string]*remoteRecord
}

// NewRemoteStore creates an empty remote store.
func NewRemoteStore() *RemoteStore {
	return &RemoteStore{data: make(map[string]*remoteRecord)}
}

// Save records the step payload and the full snapshot for the identity.
func (s *RemoteStore) Save(ctx context.Context, stepKey string, payload map[string]any, identity string, full *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[identity]
	if !ok {
		rec = &remoteRecord{steps: make(map[string]map[string]any)}
		s.data[identity] = rec
	}

	// Copy on write so the caller cannot mutate stored state by pointer.
	if full != nil {
		copied := *full
		copied.Answers = full.Answers.Clone()
		rec.snapshot = &copied
	}
	if stepKey != "" {
		rec.steps[stepKey] = payload
	}
	return nil
}

// RestoreByIdentity returns the stored snapshot for the identity.
func (s *RemoteStore) RestoreByIdentity(ctx context.Context, identity string) (*domain.RemoteSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[identity]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}

	if rec.snapshot != nil {
		return &domain.RemoteSnapshot{
			CurrentStep: rec.snapshot.CurrentStep,
			FormData:    rec.snapshot.Answers.Clone(),
		}, nil
	}

	steps := make(map[string]map[string]any, len(rec.steps))
	for k, v := range rec.steps {
		steps[k] = v
	}
	return &domain.RemoteSnapshot{StepData: steps}, nil
}

// Delete removes all data for the identity.
func (s *RemoteStore) Delete(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, identity)
	return nil
}
