package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// HealthChecker defines interface for health checking
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Pinger is anything with a context-aware Ping, such as a quota repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker checks a backing store
type PingChecker struct {
	Target Pinger
}

func (p PingChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Target.Ping(ctx)
}

// CredentialReporter is implemented by model clients that remember an auth rejection.
type CredentialReporter interface {
	CredentialsRejected() bool
}

// ModelHealthChecker fails once the model provider has rejected our credentials.
type ModelHealthChecker struct {
	Configured bool
	Client     CredentialReporter
}

func (m ModelHealthChecker) Check(context.Context) error {
	if !m.Configured {
		return errors.New("model API key not configured")
	}
	if m.Client != nil && m.Client.CredentialsRejected() {
		return errors.New("model provider rejected credentials")
	}
	return nil
}

// HealthStatus represents the health status
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

// CheckStatus represents individual check status
type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthHandler runs every checker and returns 503 when any fails
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now(),
			Checks:    make(map[string]CheckStatus),
		}

		for name, checker := range checkers {
			if err := checker.Check(ctx); err != nil {
				health.Status = "unhealthy"
				health.Checks[name] = CheckStatus{
					Status:  "unhealthy",
					Message: err.Error(),
				}
			} else {
				health.Checks[name] = CheckStatus{
					Status: "healthy",
				}
			}
		}

		statusCode := http.StatusOK
		if health.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(health)
	}
}

// ServiceName is reported by the health endpoint.
const ServiceName = "fineprint-backend"

// LivenessHandler is the health payload the mobile client polls.
func LivenessHandler(model string, modelConfigured bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":            "ok",
			"service":           ServiceName,
			"openai_configured": modelConfigured,
			"model":             model,
			"timestamp":         time.Now().UTC(),
		})
	}
}
