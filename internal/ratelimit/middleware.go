package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"chaingate/internal/models"
)

// Middleware enforces admission control in front of route handlers. One
// instance serves every protected endpoint; Limit binds it to a registered
// endpoint name.
type Middleware struct {
	resolver *Resolver
	engine   *Engine
}

// NewMiddleware creates the admission middleware from a resolver and engine.
func NewMiddleware(resolver *Resolver, engine *Engine) *Middleware {
	return &Middleware{resolver: resolver, engine: engine}
}

// Limit returns middleware that evaluates requests against the named
// endpoint's quota before the route handler executes. The endpoint must be
// registered; an unknown name surfaces as a 500 on first request, so route
// setup verifies names against the registry at bootstrap.
func (m *Middleware) Limit(endpoint string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, tier := m.resolver.Resolve(r)

			decision, err := m.engine.Evaluate(r.Context(), endpoint, client, tier, ClientIP(r))
			if err != nil {
				slog.Error("Admission evaluation failed", "endpoint", endpoint, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(models.NewErrorResponse("Internal server error", models.ErrorCodeInternalError))
				return
			}

			resetSecs := int(math.Ceil(decision.ResetAfter.Seconds()))

			// Always set rate limit headers
			w.Header().Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("RateLimit-Reset", strconv.Itoa(resetSecs))
			w.Header().Set("X-RateLimit-Client", decision.ClientLabel)

			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(resetSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(models.NewRateLimitExceededResponse(decision.Limit, resetSecs))

				slog.Warn("Rate limit exceeded",
					"endpoint", endpoint,
					"client", decision.ClientLabel,
					"limit", decision.Limit,
					"reset_after", resetSecs,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
