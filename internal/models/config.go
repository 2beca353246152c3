// Package models - Service configuration and operational settings.
// This file defines configuration structures for all service components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, redis, storage, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations early
// - Rate limit quotas are part of startup configuration and immutable at runtime
package models

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Redis         RedisConfig         `yaml:"redis" json:"redis"`                 // Shared counter store
	Storage       StorageConfig       `yaml:"storage" json:"storage"`             // Credential persistence settings
	Security      SecurityConfig      `yaml:"security" json:"security"`           // Key bootstrap and sessions
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`       // Per-endpoint quotas
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Monitoring and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing configuration
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

type SecurityConfig struct {
	// BootstrapKey, when set, is seeded into storage at startup as a Premium
	// key named by BootstrapKeyName if no key with its hash exists yet.
	BootstrapKey     string `yaml:"bootstrap_key" json:"bootstrap_key"`
	BootstrapKeyName string `yaml:"bootstrap_key_name" json:"bootstrap_key_name"`
}

// RateLimitConfig carries the per-endpoint quota table. Endpoints are
// registered into the admission engine once at bootstrap; changing quotas
// requires a restart.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// StoreTimeout bounds each call to the shared counter store. On timeout
	// or error the engine degrades to the process-local counter table.
	StoreTimeout time.Duration `yaml:"store_timeout" json:"store_timeout"`

	// SweepInterval controls how often the local fallback table evicts
	// expired windows.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`

	Endpoints map[string]EndpointLimitConfig `yaml:"endpoints" json:"endpoints"`
}

// EndpointLimitConfig is the quota table for one protected endpoint. Limits
// must name all three tiers explicitly; there are no implicit defaults.
type EndpointLimitConfig struct {
	Period    time.Duration  `yaml:"period" json:"period"`
	Limits    map[string]int `yaml:"limits" json:"limits"`
	AllowList []string       `yaml:"allow_list" json:"allow_list"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	Exporter   string  `yaml:"exporter" json:"exporter"`       // "stdout" or "otlp"
	Endpoint   string  `yaml:"endpoint" json:"endpoint"`       // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"` // 0.0 to 1.0
}

// NewDefaultConfig creates a configuration with production-ready defaults.
// Rate limiting is enabled from the start with a conservative anonymous quota;
// the endpoint table itself ships empty and is expected from the config file.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{
			BootstrapKeyName: "bootstrap",
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			StoreTimeout:  300 * time.Millisecond,
			SweepInterval: time.Minute,
			// Every routed endpoint needs a quota table; a registered route
			// without one fails evaluation at request time.
			Endpoints: map[string]EndpointLimitConfig{
				"assets": {
					Period: time.Minute,
					Limits: map[string]int{"anonymous": 10, "authenticated": 100, "premium": 1000},
				},
				"verification": {
					Period: time.Minute,
					Limits: map[string]int{"anonymous": 5, "authenticated": 50, "premium": 500},
				},
				"corridors": {
					Period: time.Minute,
					Limits: map[string]int{"anonymous": 5, "authenticated": 50, "premium": 500},
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "chaingate",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if c.RateLimit.Enabled && c.Redis.Addr == "" {
		return errors.New("redis address is required when rate limiting is enabled")
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s storage", stc.Type)
		}
		return nil
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
}

// Validate rejects malformed quota tables at startup. A missing tier, a
// non-positive limit or an unparseable allow-list address is a configuration
// error, never a per-request condition.
func (rlc *RateLimitConfig) Validate() error {
	if !rlc.Enabled {
		return nil
	}

	if rlc.StoreTimeout <= 0 {
		return errors.New("store timeout must be positive")
	}

	if rlc.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}

	for endpoint, limits := range rlc.Endpoints {
		if endpoint == "" {
			return errors.New("endpoint name cannot be empty")
		}
		if err := limits.Validate(); err != nil {
			return fmt.Errorf("endpoint %s: %w", endpoint, err)
		}
	}

	return nil
}

func (elc *EndpointLimitConfig) Validate() error {
	if elc.Period < 0 {
		return errors.New("period cannot be negative")
	}

	for _, tier := range Tiers {
		limit, ok := elc.Limits[tier.String()]
		if !ok {
			return fmt.Errorf("missing limit for tier %s", tier)
		}
		if limit <= 0 {
			return fmt.Errorf("limit for tier %s must be positive", tier)
		}
	}

	for name := range elc.Limits {
		if _, err := ParseTier(name); err != nil {
			return err
		}
	}

	for _, ip := range elc.AllowList {
		if net.ParseIP(ip) == nil {
			return fmt.Errorf("invalid allow-list address: %q", ip)
		}
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, vl := range validLevels {
		if lc.Level == vl {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	found = false
	for _, vf := range validFormats {
		if lc.Format == vf {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	found = false
	for _, vo := range validOutputs {
		if lc.Output == vo {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}
