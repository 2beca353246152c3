// Package credentials resolves presented API keys and session tokens into
// validated client identities. The admission layer consumes only the
// Validator interface; the storage-backed implementation here is the default
// production wiring.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chaingate/internal/models"
	"chaingate/internal/storage"
)

// ErrUnknownKey is returned when a presented key's hash matches nothing in
// storage.
var ErrUnknownKey = errors.New("unknown api key")

// ErrUnknownSession is returned when a session token cannot be resolved to a
// user.
var ErrUnknownSession = errors.New("unknown session token")

// KeyStatus is the validation outcome for a presented API key.
type KeyStatus int

const (
	KeyActive KeyStatus = iota
	KeyRevoked
	KeyExpired
)

// KeyInfo describes a validated API key. The raw key value never appears
// here; Prefix is the stored 8-character display prefix.
type KeyInfo struct {
	ID        string
	Name      string
	Prefix    string
	Tier      models.Tier
	Status    KeyStatus
	ExpiresAt *time.Time
}

// Validator is the credential-checking contract the identity resolver depends
// on. Implementations must be safe for concurrent use.
type Validator interface {
	// ValidateAPIKey checks a raw key against the credential store. It
	// returns ErrUnknownKey for unrecognized keys; a recognized key is
	// returned with its status even when revoked or expired so callers can
	// distinguish the cases in logs.
	ValidateAPIKey(ctx context.Context, rawKey string) (*KeyInfo, error)

	// ResolveSession maps a session token to the owning user ID, returning
	// ErrUnknownSession when the token does not verify.
	ResolveSession(ctx context.Context, token string) (string, error)

	// TouchLastUsed schedules a last-used timestamp update for the key.
	// It returns immediately; the update happens in the background and
	// failures are logged, never propagated.
	TouchLastUsed(keyID string)
}

// SessionResolver verifies session tokens. It is an optional collaborator;
// deployments without session auth leave it unset.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (userID string, err error)
}

// StoreValidator validates API keys against a storage.Store.
type StoreValidator struct {
	store    storage.Store
	sessions SessionResolver
	timeout  time.Duration
}

// StoreValidatorOption configures optional validator behavior.
type StoreValidatorOption func(*StoreValidator)

// WithSessionResolver wires a session token resolver into the validator.
func WithSessionResolver(sessions SessionResolver) StoreValidatorOption {
	return func(v *StoreValidator) {
		v.sessions = sessions
	}
}

// WithTimeout overrides the per-call storage timeout (default 500ms).
func WithTimeout(timeout time.Duration) StoreValidatorOption {
	return func(v *StoreValidator) {
		v.timeout = timeout
	}
}

// NewStoreValidator creates a Validator backed by the given credential store.
func NewStoreValidator(store storage.Store, opts ...StoreValidatorOption) *StoreValidator {
	v := &StoreValidator{
		store:   store,
		timeout: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateAPIKey looks up the SHA-256 hash of the raw key.
func (v *StoreValidator) ValidateAPIKey(ctx context.Context, rawKey string) (*KeyInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	key, err := v.store.GetAPIKeyByHash(ctx, models.HashAPIKey(rawKey))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrUnknownKey
		}
		return nil, fmt.Errorf("validate api key: %w", err)
	}

	info := &KeyInfo{
		ID:        key.ID,
		Name:      key.Name,
		Prefix:    key.Prefix,
		Tier:      key.Tier,
		Status:    KeyActive,
		ExpiresAt: key.ExpiresAt,
	}

	switch {
	case key.Status == models.KeyStatusRevoked:
		info.Status = KeyRevoked
	case key.ExpiresAt != nil && !time.Now().Before(*key.ExpiresAt):
		info.Status = KeyExpired
	}

	return info, nil
}

// ResolveSession delegates to the configured session resolver.
func (v *StoreValidator) ResolveSession(ctx context.Context, token string) (string, error) {
	if v.sessions == nil {
		return "", ErrUnknownSession
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	userID, err := v.sessions.Resolve(ctx, token)
	if err != nil {
		return "", ErrUnknownSession
	}
	return userID, nil
}

// TouchLastUsed dispatches the timestamp update without blocking the caller.
// The request context is deliberately not used: the update must survive the
// request finishing first.
func (v *StoreValidator) TouchLastUsed(keyID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
		defer cancel()

		if err := v.store.TouchLastUsed(ctx, keyID); err != nil {
			slog.Debug("Failed to update key last-used timestamp", "key_id", keyID, "error", err)
		}
	}()
}
