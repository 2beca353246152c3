package storage

import (
	"fmt"

	"chaingate/internal/models"
)

// Factory provides a centralized way to create store instances based on
// configuration. This allows for easy extensibility and provider swapping
// without code changes.
type Factory struct{}

// NewFactory creates a new storage factory
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a store based on the provided configuration.
// Supported providers:
//   - memory: In-memory storage (for testing/development)
//   - sqlite: SQLite database storage (single-instance deployments)
//   - postgres: PostgreSQL database storage (production, shared keys)
func (f *Factory) Create(config models.StorageConfig) (Store, error) {
	storeConfig := Config{
		Type:             config.Type,
		ConnectionString: config.Database.DSN,
		MaxOpenConns:     config.Database.MaxOpenConns,
	}

	switch config.Type {
	case models.StorageTypeMemory:
		return NewMemoryStore(storeConfig)
	case models.StorageTypeSQLite:
		return NewSQLiteStore(storeConfig)
	case models.StorageTypePostgres:
		return NewPostgresStore(storeConfig)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// SupportedProviders returns a list of all supported storage provider types.
func (f *Factory) SupportedProviders() []string {
	return []string{models.StorageTypeMemory, models.StorageTypeSQLite, models.StorageTypePostgres}
}
