package storage

import (
	"context"
	"sync"

	"github.com/tradekit/stratrunner/pkg/models"
)

// MemoryEphemeralStore implements the EphemeralStore interface using an
// in-memory map. Suitable for single-process deployments and tests.
type MemoryEphemeralStore struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewMemoryEphemeralStore creates a new in-memory ephemeral store
func NewMemoryEphemeralStore() *MemoryEphemeralStore {
	return &MemoryEphemeralStore{
		data: make(map[string][]byte),
	}
}

// Get retrieves the value for a key
func (s *MemoryEphemeralStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}

	// Copy so callers cannot mutate the stored slice
	out := make([]byte, len(value))
	copy(out, value)

	return out, nil
}

// Put stores the value for a key
func (s *MemoryEphemeralStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored

	return nil
}

// Delete removes a key
func (s *MemoryEphemeralStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

// Close cleans up resources
func (s *MemoryEphemeralStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// MemoryActionStore implements the ActionStore interface using in-memory
// storage, grouped by subscription id.
type MemoryActionStore struct {
	actions map[string][]models.ActionRecord
	mu      sync.RWMutex
}

// NewMemoryActionStore creates a new in-memory action store
func NewMemoryActionStore() *MemoryActionStore {
	return &MemoryActionStore{
		actions: make(map[string][]models.ActionRecord),
	}
}

// SaveActions persists a batch of action records
func (s *MemoryActionStore) SaveActions(ctx context.Context, actions []models.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, action := range actions {
		s.actions[action.SubscriptionID] = append(s.actions[action.SubscriptionID], action)
	}

	return nil
}

// ListActions returns all persisted actions for a subscription
func (s *MemoryActionStore) ListActions(ctx context.Context, subscriptionID string) ([]models.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.actions[subscriptionID]
	if !ok {
		return []models.ActionRecord{}, nil
	}

	out := make([]models.ActionRecord, len(records))
	copy(out, records)

	return out, nil
}

// Close cleans up resources
func (s *MemoryActionStore) Close() error {
	return nil
}
