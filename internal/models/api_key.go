package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// API key lifecycle states. Revoked keys stay in storage so their hashes keep
// resolving to a definite "revoked" answer instead of "unknown".
const (
	KeyStatusActive  = "active"
	KeyStatusRevoked = "revoked"
)

// APIKey represents a stored API key. The raw key value is never persisted;
// only its SHA-256 hex hash and an 8-character display prefix are stored.
type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"key_hash"`
	Prefix     string     `json:"prefix"`
	Tier       Tier       `json:"tier"`
	Status     string     `json:"status"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewAPIKey creates a new APIKey from a raw key string. A nil expiresAt means
// the key never expires.
func NewAPIKey(id, name, rawKey string, tier Tier, expiresAt *time.Time) *APIKey {
	now := time.Now().UTC()
	prefix := rawKey
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return &APIKey{
		ID:        id,
		Name:      name,
		KeyHash:   HashAPIKey(rawKey),
		Prefix:    prefix,
		Tier:      tier,
		Status:    KeyStatusActive,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GenerateAPIKey produces a new random API key in the format cg_<44 url-safe base64 chars>.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 33) // 33 bytes → 44 base64url chars
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "cg_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashAPIKey computes the SHA-256 hex digest of a raw API key.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// NewKeyID generates a new UUID v4 for use as an APIKey ID.
func NewKeyID() string {
	return uuid.New().String()
}

// Usable reports whether the key may authenticate a request at the given time:
// active and not past its expiry.
func (ak *APIKey) Usable(now time.Time) bool {
	if ak.Status != KeyStatusActive {
		return false
	}
	if ak.ExpiresAt != nil && !now.Before(*ak.ExpiresAt) {
		return false
	}
	return true
}
