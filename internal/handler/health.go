package handler

import (
	"context"
	"net/http"
	"time"

	"cardmarket/pkg/response"
)

// Check probes one dependency for readiness.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Handler serves liveness and readiness.
type Handler struct {
	version string
	checks  []Check
}

// New creates a health handler.
func New(version string, checks ...Check) *Handler {
	return &Handler{version: version, checks: checks}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool          `json:"ready"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []CheckResult `json:"checks"`
}

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Ready handles GET /api/v1/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := ReadyResponse{Ready: true, Timestamp: time.Now().UTC(), Checks: []CheckResult{{Name: "api", Status: "ok"}}}
	for _, c := range h.checks {
		res := CheckResult{Name: c.Name, Status: "ok"}
		if err := c.Probe(ctx); err != nil {
			res.Status = "error"
			res.Error = err.Error()
			resp.Ready = false
		}
		resp.Checks = append(resp.Checks, res)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, resp)
}
