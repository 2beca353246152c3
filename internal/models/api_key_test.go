package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaingate/internal/models"
)

func TestGenerateAPIKey(t *testing.T) {
	key, err := models.GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "cg_"), "key must start with cg_")
	assert.Len(t, key, 47, "cg_ (3) + 44 base64url chars = 47")
}

func TestHashAPIKey(t *testing.T) {
	hash1 := models.HashAPIKey("cg_abc123")
	hash2 := models.HashAPIKey("cg_abc123")
	hash3 := models.HashAPIKey("cg_different")
	assert.Equal(t, hash1, hash2, "same input must produce same hash")
	assert.NotEqual(t, hash1, hash3, "different inputs must produce different hashes")
	assert.Len(t, hash1, 64, "SHA-256 hex is 64 characters")
}

func TestNewAPIKey(t *testing.T) {
	raw := "cg_testkey123456789012345678901234567890123"
	key := models.NewAPIKey("test-id", "test", raw, models.TierPremium, nil)
	assert.Equal(t, "test-id", key.ID)
	assert.Equal(t, "test", key.Name)
	assert.Equal(t, models.HashAPIKey(raw), key.KeyHash)
	assert.Equal(t, "cg_testk", key.Prefix, "prefix is the first 8 characters")
	assert.Equal(t, models.TierPremium, key.Tier)
	assert.Equal(t, models.KeyStatusActive, key.Status)
	assert.Nil(t, key.ExpiresAt)
}

func TestAPIKeyUsable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		status    string
		expiresAt *time.Time
		want      bool
	}{
		{"active without expiry", models.KeyStatusActive, nil, true},
		{"active before expiry", models.KeyStatusActive, &future, true},
		{"active past expiry", models.KeyStatusActive, &past, false},
		{"expiry exactly now", models.KeyStatusActive, &now, false},
		{"revoked", models.KeyStatusRevoked, nil, false},
		{"revoked with future expiry", models.KeyStatusRevoked, &future, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := &models.APIKey{Status: tt.status, ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, key.Usable(now))
		})
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		input   string
		want    models.Tier
		wantErr bool
	}{
		{"anonymous", models.TierAnonymous, false},
		{"authenticated", models.TierAuthenticated, false},
		{"premium", models.TierPremium, false},
		{"Premium", models.TierAnonymous, true},
		{"", models.TierAnonymous, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tier, err := models.ParseTier(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tier)
		})
	}
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "anonymous", models.TierAnonymous.String())
	assert.Equal(t, "authenticated", models.TierAuthenticated.String())
	assert.Equal(t, "premium", models.TierPremium.String())
}
