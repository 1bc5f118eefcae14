package handlers

import (
	"net/http"
	"time"

	"github.com/kograph/api/internal/services"
)

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	system    services.SystemService
	startedAt time.Time
}

// NewHealthHandlers constructs probe handlers. The system service may be nil,
// in which case readiness degrades to the liveness response.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{
		system:    system,
		startedAt: time.Now(),
	}
}

// Healthz answers the liveness probe without touching any dependency.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startedAt).String(),
	})
}

// Readyz answers the readiness probe by probing downstream dependencies.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report := h.system.HealthReport(r.Context())

	checks := make([]healthCheckPayload, 0, len(report.Checks))
	for _, check := range report.Checks {
		checks = append(checks, healthCheckPayload{
			Name:      check.Name,
			Healthy:   check.Healthy,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
		})
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, status, healthReportPayload{
		Status:      report.Status,
		Version:     report.Version,
		GeneratedAt: formatTime(report.GeneratedAt),
		Uptime:      report.Uptime.String(),
		Checks:      checks,
	})
}

type healthReportPayload struct {
	Status      string               `json:"status"`
	Version     string               `json:"version,omitempty"`
	GeneratedAt string               `json:"generated_at"`
	Uptime      string               `json:"uptime"`
	Checks      []healthCheckPayload `json:"checks"`
}

type healthCheckPayload struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}
