package monitoring

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single named health check
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Service   string        `json:"service"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// Checker reports whether a dependency is reachable
type Checker func() error

// HealthHandler serves a health report aggregated over the registered checks
type HealthHandler struct {
	service  string
	version  string
	checkers map[string]Checker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service, version string) *HealthHandler {
	return &HealthHandler{
		service:  service,
		version:  version,
		checkers: make(map[string]Checker),
	}
}

// Register adds a named dependency check
func (h *HealthHandler) Register(name string, check Checker) {
	h.checkers[name] = check
}

// ServeHTTP implements http.Handler
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := HealthReport{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Service:   h.service,
		Version:   h.version,
	}

	for name, check := range h.checkers {
		hc := HealthCheck{Name: name, Status: HealthStatusHealthy}
		if err := check(); err != nil {
			hc.Status = HealthStatusUnhealthy
			hc.Message = err.Error()
			report.Status = HealthStatusUnhealthy
		}
		report.Checks = append(report.Checks, hc)
	}

	status := http.StatusOK
	if report.Status != HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(report)
}
