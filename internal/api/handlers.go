package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"chaingate/internal/analytics"
	"chaingate/internal/models"
	"chaingate/internal/storage"
	"chaingate/internal/version"
)

// Handlers contains HTTP handlers for the analytics API
type Handlers struct {
	analytics analytics.ServiceInterface
	store     storage.Store

	// counterHealthy reports whether the shared rate limit counter store is
	// reachable. Nil when rate limiting is disabled.
	counterHealthy func() bool
}

// NewHandlers creates a new handlers instance
func NewHandlers(analyticsService analytics.ServiceInterface, store storage.Store, counterHealthy func() bool) *Handlers {
	return &Handlers{
		analytics:      analyticsService,
		store:          store,
		counterHealthy: counterHealthy,
	}
}

// ListAssets handles asset list requests
// GET /api/v1/assets
func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.analytics.ListAssets(r.Context())
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to list assets")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, assets)
}

// GetVerification handles verification score requests
// GET /api/v1/assets/{asset_id}/verification
func (h *Handlers) GetVerification(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	assetID := vars["asset_id"]

	verification, err := h.analytics.GetVerification(r.Context(), assetID)
	if err != nil {
		if errors.Is(err, analytics.ErrNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Asset not found")
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to get verification")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, verification)
}

// GetCorridorActivity handles corridor activity requests
// GET /api/v1/corridors/{corridor}/activity
func (h *Handlers) GetCorridorActivity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	corridor := vars["corridor"]

	activity, err := h.analytics.GetCorridorActivity(r.Context(), corridor)
	if err != nil {
		if errors.Is(err, analytics.ErrNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Corridor not found")
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to get corridor activity")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, activity)
}

// HealthCheck handles health check requests
// GET /health
//
// The service stays "healthy" while the shared counter store is down because
// admission control keeps enforcing limits from local counters; the component
// entry surfaces the degradation for operators.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.Version

	if err := h.store.Ping(r.Context()); err != nil {
		response.Status = models.StatusDegraded
		response.AddComponent("storage", models.StatusUnhealthy, "Credential storage unreachable")
	} else {
		response.AddComponent("storage", models.StatusHealthy, "Credential storage is operational")
	}

	if h.counterHealthy != nil {
		if h.counterHealthy() {
			response.AddComponent("rate_limit_store", models.StatusHealthy, "Shared counter store is operational")
		} else {
			response.AddComponent("rate_limit_store", models.StatusDegraded, "Enforcing limits from local counters")
		}
	}

	response.AddComponent("api", models.StatusHealthy, "API is operational")

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing to send back.
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}
