package storage

import (
	"context"
	"sync"
	"time"

	"chaingate/internal/models"
)

// MemoryStore implements the Store interface using in-memory data structures.
// This provider is ideal for development and testing. It provides fast access
// but data is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	keys   map[string]*models.APIKey // keyed by ID
	hashes map[string]string         // hash -> ID
}

// NewMemoryStore creates a new memory-based store instance.
func NewMemoryStore(config Config) (*MemoryStore, error) {
	return &MemoryStore{
		keys:   make(map[string]*models.APIKey),
		hashes: make(map[string]string),
	}, nil
}

// GetAPIKeyByHash retrieves a key by the hash of its raw value.
func (m *MemoryStore) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.hashes[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}

	// Return a copy to prevent external modification
	keyCopy := *m.keys[id]
	return &keyCopy, nil
}

// GetAPIKey retrieves a key by its ID.
func (m *MemoryStore) GetAPIKey(ctx context.Context, id string) (*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[id]
	if !ok {
		return nil, ErrKeyNotFound
	}

	keyCopy := *key
	return &keyCopy, nil
}

// SaveAPIKey stores or updates a key.
func (m *MemoryStore) SaveAPIKey(ctx context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Store a copy to prevent external modification
	keyCopy := *key
	if old, ok := m.keys[key.ID]; ok && old.KeyHash != key.KeyHash {
		delete(m.hashes, old.KeyHash)
	}
	m.keys[key.ID] = &keyCopy
	m.hashes[key.KeyHash] = key.ID

	return nil
}

// ListAPIKeys returns all stored keys.
func (m *MemoryStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]*models.APIKey, 0, len(m.keys))
	for _, key := range m.keys {
		keyCopy := *key
		keys = append(keys, &keyCopy)
	}

	return keys, nil
}

// TouchLastUsed updates a key's last-used timestamp. Missing keys are ignored.
func (m *MemoryStore) TouchLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[id]
	if !ok {
		return nil
	}

	now := time.Now().UTC()
	key.LastUsedAt = &now
	key.UpdatedAt = now

	return nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
