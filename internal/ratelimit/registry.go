package ratelimit

import (
	"fmt"
	"time"

	"chaingate/internal/models"
)

// EndpointLimits is the immutable quota table for one protected endpoint:
// one limit per tier plus the set of source addresses that bypass limiting.
type EndpointLimits struct {
	Period    time.Duration
	limits    map[models.Tier]int
	allowList map[string]struct{}
}

// Limit returns the requests-per-period quota for a tier.
func (el *EndpointLimits) Limit(tier models.Tier) int {
	return el.limits[tier]
}

// Bypassed reports whether the source address is on the endpoint's
// allow-list.
func (el *EndpointLimits) Bypassed(ip string) bool {
	_, ok := el.allowList[ip]
	return ok
}

// Registry maps endpoint names to their quota tables. It is populated once
// during bootstrap via Register and read-only afterwards, so lookups need no
// synchronization.
type Registry struct {
	endpoints map[string]*EndpointLimits
	sealed    bool
}

// NewRegistry creates an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]*EndpointLimits)}
}

// Register adds an endpoint's quota table. It validates that every tier has
// an explicit positive limit; a malformed table is a configuration error and
// must abort startup. Registering after Seal or registering a duplicate
// endpoint is also an error.
func (r *Registry) Register(endpoint string, cfg models.EndpointLimitConfig) error {
	if r.sealed {
		return fmt.Errorf("registry is sealed; cannot register endpoint %s", endpoint)
	}
	if endpoint == "" {
		return fmt.Errorf("endpoint name cannot be empty")
	}
	if _, exists := r.endpoints[endpoint]; exists {
		return fmt.Errorf("endpoint %s already registered", endpoint)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("endpoint %s: %w", endpoint, err)
	}

	period := cfg.Period
	if period == 0 {
		period = time.Minute
	}

	limits := make(map[models.Tier]int, len(models.Tiers))
	for _, tier := range models.Tiers {
		limits[tier] = cfg.Limits[tier.String()]
	}

	allowList := make(map[string]struct{}, len(cfg.AllowList))
	for _, ip := range cfg.AllowList {
		allowList[ip] = struct{}{}
	}

	r.endpoints[endpoint] = &EndpointLimits{
		Period:    period,
		limits:    limits,
		allowList: allowList,
	}
	return nil
}

// Seal marks the registry complete. After Seal the registry is safe to share
// across goroutines without locking.
func (r *Registry) Seal() {
	r.sealed = true
}

// Lookup returns the quota table for an endpoint, or false when the endpoint
// was never registered.
func (r *Registry) Lookup(endpoint string) (*EndpointLimits, bool) {
	el, ok := r.endpoints[endpoint]
	return el, ok
}

// Endpoints returns the names of all registered endpoints.
func (r *Registry) Endpoints() []string {
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	return names
}
