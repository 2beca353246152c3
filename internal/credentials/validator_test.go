package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaingate/internal/models"
	"chaingate/internal/storage"
)

func newStoreWithKey(t *testing.T, key *models.APIKey) storage.Store {
	t.Helper()
	store, err := storage.NewMemoryStore(storage.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	if key != nil {
		require.NoError(t, store.SaveAPIKey(context.Background(), key))
	}
	return store
}

func TestStoreValidator_ValidateAPIKey_Active(t *testing.T) {
	raw := "cg_active-key-raw-value"
	key := models.NewAPIKey(models.NewKeyID(), "active", raw, models.TierPremium, nil)
	validator := NewStoreValidator(newStoreWithKey(t, key))

	info, err := validator.ValidateAPIKey(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, key.ID, info.ID)
	assert.Equal(t, KeyActive, info.Status)
	assert.Equal(t, models.TierPremium, info.Tier)
	assert.Equal(t, "cg_activ", info.Prefix)
}

func TestStoreValidator_ValidateAPIKey_Unknown(t *testing.T) {
	validator := NewStoreValidator(newStoreWithKey(t, nil))

	_, err := validator.ValidateAPIKey(context.Background(), "cg_never-stored")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestStoreValidator_ValidateAPIKey_Revoked(t *testing.T) {
	raw := "cg_revoked-key-raw-value"
	key := models.NewAPIKey(models.NewKeyID(), "revoked", raw, models.TierAuthenticated, nil)
	key.Status = models.KeyStatusRevoked
	validator := NewStoreValidator(newStoreWithKey(t, key))

	info, err := validator.ValidateAPIKey(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, KeyRevoked, info.Status)
}

func TestStoreValidator_ValidateAPIKey_Expired(t *testing.T) {
	raw := "cg_expired-key-raw-value"
	past := time.Now().Add(-time.Hour)
	key := models.NewAPIKey(models.NewKeyID(), "expired", raw, models.TierAuthenticated, &past)
	validator := NewStoreValidator(newStoreWithKey(t, key))

	info, err := validator.ValidateAPIKey(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, KeyExpired, info.Status)
}

func TestStoreValidator_TouchLastUsed_Async(t *testing.T) {
	raw := "cg_touched-key-raw-value"
	key := models.NewAPIKey(models.NewKeyID(), "touched", raw, models.TierAuthenticated, nil)
	store := newStoreWithKey(t, key)
	validator := NewStoreValidator(store)

	validator.TouchLastUsed(key.ID)

	// The update is asynchronous; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.GetAPIKey(context.Background(), key.ID)
		require.NoError(t, err)
		if got.LastUsedAt != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("last-used timestamp was never written")
}

type stubSessions struct {
	userID string
	err    error
}

func (s stubSessions) Resolve(ctx context.Context, token string) (string, error) {
	return s.userID, s.err
}

func TestStoreValidator_ResolveSession(t *testing.T) {
	store := newStoreWithKey(t, nil)

	t.Run("no resolver configured", func(t *testing.T) {
		validator := NewStoreValidator(store)
		_, err := validator.ResolveSession(context.Background(), "token")
		assert.ErrorIs(t, err, ErrUnknownSession)
	})

	t.Run("resolver success", func(t *testing.T) {
		validator := NewStoreValidator(store, WithSessionResolver(stubSessions{userID: "user-42"}))
		userID, err := validator.ResolveSession(context.Background(), "token")
		require.NoError(t, err)
		assert.Equal(t, "user-42", userID)
	})

	t.Run("resolver failure maps to unknown session", func(t *testing.T) {
		validator := NewStoreValidator(store, WithSessionResolver(stubSessions{err: errors.New("boom")}))
		_, err := validator.ResolveSession(context.Background(), "token")
		assert.ErrorIs(t, err, ErrUnknownSession)
	})
}
