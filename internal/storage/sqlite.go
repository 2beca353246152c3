package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chaingate/internal/models"

	_ "modernc.org/sqlite"
)

// SQLiteStore provides a lightweight single-file implementation of the Store
// interface. Suitable for single-instance deployments and integration tests
// that need persistence without a database server.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS api_keys (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	key_hash     TEXT NOT NULL UNIQUE,
	prefix       TEXT NOT NULL,
	tier         TEXT NOT NULL,
	status       TEXT NOT NULL,
	expires_at   TEXT,
	last_used_at TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(key_hash);
`

// NewSQLiteStore creates a new SQLite store instance and ensures the schema
// exists.
func NewSQLiteStore(config Config) (Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// GetAPIKeyByHash retrieves a key by the hash of its raw value.
func (ss *SQLiteStore) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, name, key_hash, prefix, tier, status, expires_at, last_used_at, created_at, updated_at
		 FROM api_keys WHERE key_hash = ?`, hash)
	return scanAPIKey(row)
}

// GetAPIKey retrieves a key by its ID.
func (ss *SQLiteStore) GetAPIKey(ctx context.Context, id string) (*models.APIKey, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, name, key_hash, prefix, tier, status, expires_at, last_used_at, created_at, updated_at
		 FROM api_keys WHERE id = ?`, id)
	return scanAPIKey(row)
}

// SaveAPIKey stores or updates a key (upsert on ID).
func (ss *SQLiteStore) SaveAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, key_hash, prefix, tier, status, expires_at, last_used_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			key_hash = excluded.key_hash,
			prefix = excluded.prefix,
			tier = excluded.tier,
			status = excluded.status,
			expires_at = excluded.expires_at,
			last_used_at = excluded.last_used_at,
			updated_at = excluded.updated_at`,
		key.ID, key.Name, key.KeyHash, key.Prefix, key.Tier.String(), key.Status,
		formatNullableTime(key.ExpiresAt), formatNullableTime(key.LastUsedAt),
		key.CreatedAt.UTC().Format(time.RFC3339Nano), key.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}

// ListAPIKeys returns all stored keys.
func (ss *SQLiteStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT id, name, key_hash, prefix, tier, status, expires_at, last_used_at, created_at, updated_at
		 FROM api_keys ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// TouchLastUsed updates a key's last-used timestamp. Missing keys are ignored.
func (ss *SQLiteStore) TouchLastUsed(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := ss.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (ss *SQLiteStore) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the database connection.
func (ss *SQLiteStore) Close() error {
	return ss.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for scanAPIKey.
type scanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row scanner) (*models.APIKey, error) {
	var (
		key                  models.APIKey
		tier                 string
		expires, lastUsed    sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&key.ID, &key.Name, &key.KeyHash, &key.Prefix, &tier, &key.Status,
		&expires, &lastUsed, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to scan api key: %w", err)
	}

	key.Tier, err = models.ParseTier(tier)
	if err != nil {
		return nil, fmt.Errorf("stored api key %s: %w", key.ID, err)
	}

	if key.ExpiresAt, err = parseNullableTime(expires); err != nil {
		return nil, fmt.Errorf("stored api key %s: %w", key.ID, err)
	}
	if key.LastUsedAt, err = parseNullableTime(lastUsed); err != nil {
		return nil, fmt.Errorf("stored api key %s: %w", key.ID, err)
	}
	if key.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("stored api key %s: %w", key.ID, err)
	}
	if key.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("stored api key %s: %w", key.ID, err)
	}

	return &key, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
