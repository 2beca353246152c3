package storage

import (
	"context"

	"chaingate/internal/models"
)

// Store defines the interface for API key persistence and retrieval. It
// provides a clean abstraction that can be implemented by different backends
// such as in-memory maps, SQLite, or PostgreSQL.
type Store interface {
	// GetAPIKeyByHash retrieves a key by the SHA-256 hex hash of its raw
	// value. Returns ErrKeyNotFound when no key matches.
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)

	// GetAPIKey retrieves a key by its ID. Returns ErrKeyNotFound when no
	// key matches.
	GetAPIKey(ctx context.Context, id string) (*models.APIKey, error)

	// SaveAPIKey stores or updates a key.
	SaveAPIKey(ctx context.Context, key *models.APIKey) error

	// ListAPIKeys returns all stored keys.
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)

	// TouchLastUsed updates a key's last-used timestamp to now. Missing keys
	// are not an error; the update is best-effort bookkeeping.
	TouchLastUsed(ctx context.Context, id string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources.
	Close() error
}

// Config holds configuration for storage backends.
type Config struct {
	// Type specifies the storage backend type (memory, sqlite, postgres)
	Type string

	// ConnectionString is used for database backends
	ConnectionString string

	// MaxOpenConns bounds the database connection pool
	MaxOpenConns int
}
