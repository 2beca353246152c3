package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	// Test server defaults
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, config.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, config.Server.IdleTimeout)
	assert.False(t, config.Server.TLSEnabled)

	// Test redis defaults
	assert.Equal(t, "localhost:6379", config.Redis.Addr)
	assert.Equal(t, 10, config.Redis.PoolSize)

	// Test storage defaults
	assert.Equal(t, StorageTypeMemory, config.Storage.Type)
	assert.Equal(t, 25, config.Storage.Database.MaxOpenConns)
	assert.Equal(t, 5, config.Storage.Database.MaxIdleConns)

	// Test rate limit defaults
	assert.True(t, config.RateLimit.Enabled)
	assert.Equal(t, 300*time.Millisecond, config.RateLimit.StoreTimeout)
	assert.Equal(t, time.Minute, config.RateLimit.SweepInterval)
	assert.NotNil(t, config.RateLimit.Endpoints)

	// Test logging defaults
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, "stdout", config.Logging.Output)

	// Test metrics defaults
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, "/metrics", config.Metrics.Path)
	assert.Equal(t, 9090, config.Metrics.Port)

	// Test observability defaults
	assert.Equal(t, "chaingate", config.Observability.ServiceName)
	assert.False(t, config.Observability.Tracing.Enabled)
	assert.Equal(t, "stdout", config.Observability.Tracing.Exporter)
}

func limitsForAllTiers(anon, auth, premium int) map[string]int {
	return map[string]int{
		"anonymous":     anon,
		"authenticated": auth,
		"premium":       premium,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "valid default config",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid server port",
			mutate:      func(c *Config) { c.Server.Port = -1 },
			expectError: true,
		},
		{
			name:        "invalid storage type",
			mutate:      func(c *Config) { c.Storage.Type = "cassandra" },
			expectError: true,
		},
		{
			name: "database storage without DSN",
			mutate: func(c *Config) {
				c.Storage.Type = StorageTypePostgres
				c.Storage.Database.DSN = ""
			},
			expectError: true,
		},
		{
			name: "rate limiting requires redis addr",
			mutate: func(c *Config) {
				c.Redis.Addr = ""
			},
			expectError: true,
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
		},
		{
			name:        "metrics without path",
			mutate:      func(c *Config) { c.Metrics.Path = "" },
			expectError: true,
		},
		{
			name: "TLS without cert",
			mutate: func(c *Config) {
				c.Server.TLSEnabled = true
				c.Server.TLSKeyFile = "/path/key.pem"
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEndpointLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      EndpointLimitConfig
		expectError bool
	}{
		{
			name: "all tiers present",
			config: EndpointLimitConfig{
				Period: time.Minute,
				Limits: limitsForAllTiers(60, 300, 1200),
			},
			expectError: false,
		},
		{
			name: "missing premium tier",
			config: EndpointLimitConfig{
				Period: time.Minute,
				Limits: map[string]int{"anonymous": 60, "authenticated": 300},
			},
			expectError: true,
		},
		{
			name: "zero limit rejected",
			config: EndpointLimitConfig{
				Period: time.Minute,
				Limits: limitsForAllTiers(0, 300, 1200),
			},
			expectError: true,
		},
		{
			name: "unknown tier name rejected",
			config: EndpointLimitConfig{
				Period: time.Minute,
				Limits: map[string]int{
					"anonymous": 60, "authenticated": 300, "premium": 1200, "platinum": 9000,
				},
			},
			expectError: true,
		},
		{
			name: "invalid allow-list address",
			config: EndpointLimitConfig{
				Period:    time.Minute,
				Limits:    limitsForAllTiers(60, 300, 1200),
				AllowList: []string{"not-an-ip"},
			},
			expectError: true,
		},
		{
			name: "valid allow-list",
			config: EndpointLimitConfig{
				Period:    time.Minute,
				Limits:    limitsForAllTiers(60, 300, 1200),
				AllowList: []string{"10.0.0.5", "2001:db8::1"},
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRateLimitConfig_Validate_Disabled(t *testing.T) {
	cfg := RateLimitConfig{Enabled: false}
	assert.NoError(t, cfg.Validate(), "disabled rate limiting skips validation")
}

func TestRateLimitConfig_Validate_BadEndpoint(t *testing.T) {
	cfg := RateLimitConfig{
		Enabled:       true,
		StoreTimeout:  300 * time.Millisecond,
		SweepInterval: time.Minute,
		Endpoints: map[string]EndpointLimitConfig{
			"assets.lookup": {Period: time.Minute, Limits: map[string]int{"anonymous": 60}},
		},
	}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "assets.lookup")
}
