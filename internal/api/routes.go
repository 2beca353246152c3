package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"chaingate/internal/models"
	"chaingate/internal/ratelimit"
)

// Endpoint names used in the admission registry. Route setup and the config
// file must agree on these.
const (
	EndpointAssets       = "assets"
	EndpointVerification = "verification"
	EndpointCorridors    = "corridors"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// SetupRoutes configures the HTTP routes for the API. When limiter is
// non-nil each analytics endpoint group gets its own admission middleware;
// health stays unlimited so probes are never throttled.
func SetupRoutes(handlers *Handlers, config *models.Config, limiter *ratelimit.Middleware, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	// The verification subrouter is registered before the assets one: mux
	// matches prefixes in registration order and /assets would otherwise
	// swallow /assets/{asset_id}/verification.
	verification := api.PathPrefix("/assets/{asset_id}/verification").Subrouter()
	assets := api.PathPrefix("/assets").Subrouter()
	corridors := api.PathPrefix("/corridors").Subrouter()

	if limiter != nil {
		assets.Use(limiter.Limit(EndpointAssets))
		verification.Use(limiter.Limit(EndpointVerification))
		corridors.Use(limiter.Limit(EndpointCorridors))
	}

	assets.HandleFunc("", handlers.ListAssets).Methods("GET")
	verification.HandleFunc("", handlers.GetVerification).Methods("GET")
	corridors.HandleFunc("/{corridor}/activity", handlers.GetCorridorActivity).Methods("GET")

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/health", handlers.HealthCheck).Methods("GET")

	api.PathPrefix("").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}).Methods("OPTIONS")

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		errorResp := models.NewErrorResponse("Method not allowed", models.ErrorCodeInvalidRequest)
		json.NewEncoder(w).Encode(errorResp)
	})

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered", "error", err, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				errorResp := models.NewErrorResponse("Internal server error", models.ErrorCodeInternalError)
				json.NewEncoder(w).Encode(errorResp)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
