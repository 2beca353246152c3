package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"chaingate/internal/credentials"
	"chaingate/internal/models"
)

// Resolver turns an inbound request's credentials into a Client and Tier.
// Resolution follows a strict priority: a valid API key wins, then a
// verified session token, then the source address at Anonymous tier.
// Malformed or failed credentials never produce an error; they fall through
// the chain as if absent.
type Resolver struct {
	validator credentials.Validator
}

// NewResolver creates a resolver over a credential validator.
func NewResolver(validator credentials.Validator) *Resolver {
	return &Resolver{validator: validator}
}

// Resolve identifies the client behind a request. Exactly one identity is
// produced and it is fixed for the request's lifetime.
func (r *Resolver) Resolve(req *http.Request) (Client, models.Tier) {
	ip := ClientIP(req)

	token := bearerToken(req)
	if token == "" {
		return IPClient{Addr: ip}, models.TierAnonymous
	}

	if strings.HasPrefix(token, "cg_") {
		info, err := r.validator.ValidateAPIKey(req.Context(), token)
		switch {
		case err != nil:
			slog.Debug("API key did not resolve; treating request as anonymous", "error", err)
		case info.Status != credentials.KeyActive:
			slog.Debug("API key is not usable; treating request as anonymous",
				"key_prefix", info.Prefix,
				"key_status", int(info.Status),
			)
		default:
			// Last-used bookkeeping must never block the request path.
			r.validator.TouchLastUsed(info.ID)
			return APIKeyClient{KeyID: info.ID, Prefix: info.Prefix}, info.Tier
		}
		return IPClient{Addr: ip}, models.TierAnonymous
	}

	if userID, err := r.validator.ResolveSession(req.Context(), token); err == nil {
		return UserClient{UserID: userID}, models.TierAuthenticated
	}

	return IPClient{Addr: ip}, models.TierAnonymous
}

// bearerToken extracts the Bearer credential from the Authorization header.
// Anything malformed is treated as absent.
func bearerToken(req *http.Request) string {
	authHeader := req.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// ClientIP extracts the client IP from the request, checking proxy headers.
func ClientIP(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := req.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
