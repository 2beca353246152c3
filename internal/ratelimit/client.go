package ratelimit

import "chaingate/internal/models"

// Client identifies who a request is counted against. It is a closed sum
// type: exactly one of APIKeyClient, UserClient or IPClient, fixed for the
// lifetime of the request. The unexported marker method keeps the set closed
// so every consumer can switch exhaustively.
type Client interface {
	// Key returns the stable counter-key component for this client.
	Key() string

	// Label returns the value for the X-RateLimit-Client header:
	// "<tier>:<opaque prefix>". It must never contain a full secret.
	Label(tier models.Tier) string

	client()
}

// APIKeyClient identifies a request authenticated with a valid API key.
// Prefix is the stored 8-character display prefix, never the raw key.
type APIKeyClient struct {
	KeyID  string
	Prefix string
}

func (c APIKeyClient) Key() string { return "key:" + c.KeyID }

func (c APIKeyClient) Label(tier models.Tier) string { return tier.String() + ":" + c.Prefix }

func (APIKeyClient) client() {}

// UserClient identifies a request authenticated with a session token.
type UserClient struct {
	UserID string
}

func (c UserClient) Key() string { return "user:" + c.UserID }

func (c UserClient) Label(tier models.Tier) string { return tier.String() + ":" + c.UserID }

func (UserClient) client() {}

// IPClient identifies an unauthenticated request by its source address.
type IPClient struct {
	Addr string
}

func (c IPClient) Key() string { return "ip:" + c.Addr }

func (c IPClient) Label(tier models.Tier) string { return tier.String() + ":" + c.Addr }

func (IPClient) client() {}
