package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaingate/internal/analytics"
	"chaingate/internal/api"
	"chaingate/internal/credentials"
	"chaingate/internal/models"
	"chaingate/internal/ratelimit"
	"chaingate/internal/storage"
)

// Integration tests that exercise the assembled service end-to-end:
// identity resolution, admission control and the analytics handlers behind
// it, wired the same way the main binary does it but with in-process
// storage and counters.

type testStack struct {
	server *httptest.Server
	store  storage.Store
}

func newTestStack(t *testing.T, endpoints map[string]models.EndpointLimitConfig) *testStack {
	t.Helper()

	store, err := storage.NewMemoryStore(storage.Config{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := ratelimit.NewRegistry()
	for endpoint, limits := range endpoints {
		require.NoError(t, registry.Register(endpoint, limits))
	}
	registry.Seal()

	counters := ratelimit.NewLocalCounter(time.Minute)
	t.Cleanup(counters.Close)

	limiter := ratelimit.NewMiddleware(
		ratelimit.NewResolver(credentials.NewStoreValidator(store)),
		ratelimit.NewEngine(registry, counters),
	)

	handlers := api.NewHandlers(analytics.NewService(), store, nil)
	router := api.SetupRoutes(handlers, models.NewDefaultConfig(), limiter)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testStack{server: server, store: store}
}

func defaultEndpoints(anonymous int) map[string]models.EndpointLimitConfig {
	limits := map[string]int{
		"anonymous":     anonymous,
		"authenticated": 100,
		"premium":       1000,
	}
	return map[string]models.EndpointLimitConfig{
		api.EndpointAssets:       {Period: time.Minute, Limits: limits},
		api.EndpointVerification: {Period: time.Minute, Limits: limits},
		api.EndpointCorridors:    {Period: time.Minute, Limits: limits},
	}
}

// seedKey stores a key and returns its raw value.
func seedKey(t *testing.T, store storage.Store, tier models.Tier, expiresAt *time.Time) string {
	t.Helper()
	raw, err := models.GenerateAPIKey()
	require.NoError(t, err)
	key := models.NewAPIKey(models.NewKeyID(), "integration", raw, tier, expiresAt)
	require.NoError(t, store.SaveAPIKey(context.Background(), key))
	return raw
}

func get(t *testing.T, url, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestIntegration_AnonymousFlow(t *testing.T) {
	stack := newTestStack(t, defaultEndpoints(3))

	// First three requests succeed with decreasing Remaining.
	for i := 1; i <= 3; i++ {
		resp := get(t, stack.server.URL+"/api/v1/assets", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "3", resp.Header.Get("RateLimit-Limit"))
		assert.Equal(t, fmt.Sprintf("%d", 3-i), resp.Header.Get("RateLimit-Remaining"))
		resp.Body.Close()
	}

	// The fourth is denied with a structured body.
	resp := get(t, stack.server.URL+"/api/v1/assets", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var body models.RateLimitExceededResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Rate limit exceeded", body.Error)
	assert.Equal(t, 3, body.Limit)
}

func TestIntegration_PremiumKeyFlow(t *testing.T) {
	stack := newTestStack(t, defaultEndpoints(1))
	raw := seedKey(t, stack.store, models.TierPremium, nil)

	// Exhaust the anonymous quota from this address.
	resp := get(t, stack.server.URL+"/api/v1/assets", "")
	resp.Body.Close()
	resp = get(t, stack.server.URL+"/api/v1/assets", "")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()

	// The key is a separate identity with the premium limit.
	resp = get(t, stack.server.URL+"/api/v1/assets", raw)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1000", resp.Header.Get("RateLimit-Limit"))
	assert.Contains(t, resp.Header.Get("X-RateLimit-Client"), "premium:")
}

func TestIntegration_ExpiredKeyFallsBackToAnonymous(t *testing.T) {
	stack := newTestStack(t, defaultEndpoints(5))
	expired := time.Now().Add(-time.Hour)
	raw := seedKey(t, stack.store, models.TierPremium, &expired)

	resp := get(t, stack.server.URL+"/api/v1/assets", raw)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("RateLimit-Limit"), "expired key must be limited at the anonymous tier")
	assert.Contains(t, resp.Header.Get("X-RateLimit-Client"), "anonymous:")
}

func TestIntegration_RevokedKeyFallsBackToAnonymous(t *testing.T) {
	stack := newTestStack(t, defaultEndpoints(5))

	raw, err := models.GenerateAPIKey()
	require.NoError(t, err)
	key := models.NewAPIKey(models.NewKeyID(), "revoked", raw, models.TierPremium, nil)
	key.Status = models.KeyStatusRevoked
	require.NoError(t, stack.store.SaveAPIKey(context.Background(), key))

	resp := get(t, stack.server.URL+"/api/v1/assets", raw)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("X-RateLimit-Client"), "anonymous:")
}

func TestIntegration_KeyUsageTouchesLastUsed(t *testing.T) {
	stack := newTestStack(t, defaultEndpoints(5))
	raw := seedKey(t, stack.store, models.TierAuthenticated, nil)

	resp := get(t, stack.server.URL+"/api/v1/assets", raw)
	resp.Body.Close()

	// The timestamp update is asynchronous.
	hash := models.HashAPIKey(raw)
	require.Eventually(t, func() bool {
		key, err := stack.store.GetAPIKeyByHash(context.Background(), hash)
		return err == nil && key.LastUsedAt != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestIntegration_VerificationEndpoint(t *testing.T) {
	stack := newTestStack(t, defaultEndpoints(5))

	resp := get(t, stack.server.URL+"/api/v1/assets/usdc-eth/verification", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v models.VerificationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, "usdc-eth", v.AssetID)
}

func TestIntegration_HealthBypassesLimits(t *testing.T) {
	stack := newTestStack(t, defaultEndpoints(1))

	for i := 0; i < 5; i++ {
		resp := get(t, stack.server.URL+"/health", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestIntegration_DegradedCounterStoreStillEnforces(t *testing.T) {
	store, err := storage.NewMemoryStore(storage.Config{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := ratelimit.NewRegistry()
	for endpoint, limits := range defaultEndpoints(2) {
		require.NoError(t, registry.Register(endpoint, limits))
	}
	registry.Seal()

	// Point the primary at a store that is not there; every call degrades to
	// the local fallback.
	local := ratelimit.NewLocalCounter(time.Minute)
	t.Cleanup(local.Close)
	failover := ratelimit.NewFailoverCounter(unreachableCounter{}, local, 50*time.Millisecond)

	limiter := ratelimit.NewMiddleware(
		ratelimit.NewResolver(credentials.NewStoreValidator(store)),
		ratelimit.NewEngine(registry, failover),
	)

	handlers := api.NewHandlers(analytics.NewService(), store, failover.Healthy)
	server := httptest.NewServer(api.SetupRoutes(handlers, models.NewDefaultConfig(), limiter))
	t.Cleanup(server.Close)

	var last *http.Response
	for i := 0; i < 3; i++ {
		last = get(t, server.URL+"/api/v1/assets", "")
		last.Body.Close()
	}
	assert.Equal(t, http.StatusTooManyRequests, last.StatusCode, "limits hold while the shared store is down")
	assert.False(t, failover.Healthy())

	// Health reports the degradation without going unhealthy.
	resp := get(t, server.URL+"/health", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health models.HealthCheckResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, models.StatusHealthy, health.Status)
	assert.Equal(t, models.StatusDegraded, health.Components["rate_limit_store"].Status)
}

// unreachableCounter simulates a dead shared store.
type unreachableCounter struct{}

func (unreachableCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return 0, 0, fmt.Errorf("dial tcp: connection refused")
}
