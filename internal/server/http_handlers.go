package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"recruitflow/internal/errors"
)

// healthHandler reports the service status including the model and its circuit breakers
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":      "healthy",
		"service":     "recruitflow",
		"version":     s.Version,
		"active_runs": s.runs.len(),
	}

	overallHealthy := true
	if s.deps.Model == nil {
		response["ai_models"] = map[string]any{
			"available": false,
			"message":   "No model configured, pattern extraction and default assessments in use",
		}
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), s.healthCheckTimeout())
		defer cancel()

		models := s.deps.Model.ModelInfo(ctx)
		response["ai_models"] = models
		response["circuit_breakers"] = s.deps.Model.BreakerStats()
		for _, info := range models {
			if info != nil && !info.Available {
				overallHealthy = false
			}
		}
	}

	status := http.StatusOK
	if !overallHealthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// healthCheckTimeout returns the configured timeout of one model probe
func (s *Server) healthCheckTimeout() time.Duration {
	hc := s.AppConfig.Observability.HealthCheck
	if hc.AIModelCheckTimeout > 0 {
		return hc.AIModelCheckTimeout
	}
	if hc.Timeout > 0 {
		return hc.Timeout
	}
	return 5 * time.Second
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service":        "recruitflow",
		"version":        s.Version,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"api_keys_configured":    s.keyCount(),
		},
		"pipeline": map[string]any{
			"active_runs":    s.runs.len(),
			"workers":        s.AppConfig.Pipeline.Workers,
			"minimum_score":  s.AppConfig.Pipeline.MinimumScore,
			"max_candidates": s.AppConfig.Pipeline.MaxCandidates,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "content-type must be application/json", nil)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return errors.NewValidationError(errors.ErrCodeFileTooLarge,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read request body", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "failed to parse JSON", err)
	}
	return nil
}

// statusFor maps an application error to its HTTP status
func statusFor(err error) int {
	switch errors.Code(err) {
	case errors.ErrCodeRunNotFound:
		return http.StatusNotFound
	case errors.ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeModelTimeout:
		return http.StatusGatewayTimeout
	}

	switch {
	case errors.IsType(err, errors.ErrorTypeValidation), errors.IsType(err, errors.ErrorTypeScoringInput):
		return http.StatusBadRequest
	case errors.IsType(err, errors.ErrorTypeExtraction):
		return http.StatusUnprocessableEntity
	case errors.IsType(err, errors.ErrorTypeExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError writes err as a standardized error response
func writeAppError(w http.ResponseWriter, title string, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{
		Error:   title,
		Message: err.Error(),
		Code:    errors.Code(err),
	})
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, title, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   title,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent, so an encoding failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}
