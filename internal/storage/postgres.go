package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chaingate/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using PostgreSQL via pgxpool.
// This is the production backend when keys are shared across instances.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS api_keys (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	key_hash     TEXT NOT NULL UNIQUE,
	prefix       TEXT NOT NULL,
	tier         TEXT NOT NULL,
	status       TEXT NOT NULL,
	expires_at   TIMESTAMPTZ,
	last_used_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
)`

// NewPostgresStore creates a new PostgreSQL store instance and ensures the
// schema exists.
func NewPostgresStore(config Config) (Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolCfg, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(config.MaxOpenConns)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// GetAPIKeyByHash retrieves a key by the hash of its raw value.
func (ps *PostgresStore) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT id, name, key_hash, prefix, tier, status, expires_at, last_used_at, created_at, updated_at
		 FROM api_keys WHERE key_hash = $1`, hash)
	return scanPgAPIKey(row)
}

// GetAPIKey retrieves a key by its ID.
func (ps *PostgresStore) GetAPIKey(ctx context.Context, id string) (*models.APIKey, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT id, name, key_hash, prefix, tier, status, expires_at, last_used_at, created_at, updated_at
		 FROM api_keys WHERE id = $1`, id)
	return scanPgAPIKey(row)
}

// SaveAPIKey stores or updates a key (upsert on ID).
func (ps *PostgresStore) SaveAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, prefix, tier, status, expires_at, last_used_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			key_hash = EXCLUDED.key_hash,
			prefix = EXCLUDED.prefix,
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			expires_at = EXCLUDED.expires_at,
			last_used_at = EXCLUDED.last_used_at,
			updated_at = EXCLUDED.updated_at`,
		key.ID, key.Name, key.KeyHash, key.Prefix, key.Tier.String(), key.Status,
		key.ExpiresAt, key.LastUsedAt, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}

// ListAPIKeys returns all stored keys.
func (ps *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, name, key_hash, prefix, tier, status, expires_at, last_used_at, created_at, updated_at
		 FROM api_keys ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key, err := scanPgAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// TouchLastUsed updates a key's last-used timestamp. Missing keys are ignored.
func (ps *PostgresStore) TouchLastUsed(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := ps.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = $1, updated_at = $1 WHERE id = $2`, now, id)
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() error {
	ps.pool.Close()
	return nil
}

func scanPgAPIKey(row pgx.Row) (*models.APIKey, error) {
	var (
		key  models.APIKey
		tier string
	)
	err := row.Scan(&key.ID, &key.Name, &key.KeyHash, &key.Prefix, &tier, &key.Status,
		&key.ExpiresAt, &key.LastUsedAt, &key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to scan api key: %w", err)
	}

	key.Tier, err = models.ParseTier(tier)
	if err != nil {
		return nil, fmt.Errorf("stored api key %s: %w", key.ID, err)
	}

	return &key, nil
}
