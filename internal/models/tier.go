package models

import "fmt"

// Tier is the trust class assigned to a resolved client. It determines which
// per-endpoint quota applies. The zero value is TierAnonymous so an
// unresolved client always lands on the most restrictive quota.
type Tier int

const (
	TierAnonymous Tier = iota
	TierAuthenticated
	TierPremium
)

// Tiers lists every tier in ascending trust order. Endpoint limit tables must
// cover all of them.
var Tiers = []Tier{TierAnonymous, TierAuthenticated, TierPremium}

// String returns the lower-case name used in config files, log fields and the
// X-RateLimit-Client header.
func (t Tier) String() string {
	switch t {
	case TierAnonymous:
		return "anonymous"
	case TierAuthenticated:
		return "authenticated"
	case TierPremium:
		return "premium"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts a config/storage string into a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "anonymous":
		return TierAnonymous, nil
	case "authenticated":
		return TierAuthenticated, nil
	case "premium":
		return TierPremium, nil
	default:
		return TierAnonymous, fmt.Errorf("unknown tier: %q", s)
	}
}
