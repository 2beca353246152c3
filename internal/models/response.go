// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - Machine-readable error codes for programmatic handling
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

// ErrorResponse provides structured error information with debugging context.
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

// RateLimitExceededResponse is the body of every 429 response. ResetAfter is
// the number of seconds until the current window expires and counting
// restarts from zero.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Limit      int    `json:"limit"`
	ResetAfter int    `json:"reset_after"`
}

// NewRateLimitExceededResponse builds the denial payload for a limit and
// window reset delay.
func NewRateLimitExceededResponse(limit, resetAfter int) *RateLimitExceededResponse {
	return &RateLimitExceededResponse{
		Error:      "Rate limit exceeded",
		Limit:      limit,
		ResetAfter: resetAfter,
	}
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AssetResponse describes a tracked on-chain asset.
type AssetResponse struct {
	AssetID   string    `json:"asset_id"`
	Symbol    string    `json:"symbol"`
	Network   string    `json:"network"`
	Issuer    string    `json:"issuer,omitempty"`
	Supply    float64   `json:"supply"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VerificationResponse carries an asset's verification score.
type VerificationResponse struct {
	AssetID    string    `json:"asset_id"`
	Score      float64   `json:"score"`
	Factors    []string  `json:"factors,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// CorridorActivityResponse summarizes transfer activity between two networks.
type CorridorActivityResponse struct {
	Corridor      string    `json:"corridor"`
	TransferCount int64     `json:"transfer_count"`
	Volume        float64   `json:"volume"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
	StatusUnknown   = "unknown"   // Status indeterminate
)

// Standard HTTP Error Codes
const (
	ErrorCodeNotFound           = "NOT_FOUND"            // 404: Resource doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"          // 400: Invalid request format
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"      // 400: Invalid request data
	ErrorCodeInternalError      = "INTERNAL_ERROR"       // 500: Server-side error
	ErrorCodeUnauthorized       = "UNAUTHORIZED"         // 401: Authentication required
	ErrorCodeRateLimited        = "RATE_LIMIT_EXCEEDED"  // 429: Quota exhausted
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE"  // 503: Service temporarily down
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}
