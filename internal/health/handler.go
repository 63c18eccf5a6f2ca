// Package health serves liveness and readiness endpoints backed by
// registered dependency checks.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/unalkalkan/VoiceReader/internal/storage"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) (Status, error)

// Response represents a health check response
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// Handler manages health checks
type Handler struct {
	checks  map[string]CheckFunc
	mu      sync.RWMutex
	version string
}

// NewHandler creates a new health check handler
func NewHandler(version string) *Handler {
	return &Handler{
		checks:  make(map[string]CheckFunc),
		version: version,
	}
}

// Register adds a health check, replacing any check of the same name
func (h *Handler) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Names returns the registered check names in sorted order
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunChecks executes all registered checks concurrently
func (h *Handler) RunChecks(ctx context.Context) Response {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			status, err := check(ctx)
			result := CheckResult{Status: status, Duration: time.Since(start).String()}
			if err != nil {
				result.Error = err.Error()
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall := StatusHealthy
	for _, result := range results {
		switch {
		case result.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case result.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}

	return Response{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Checks:    results,
		Version:   h.version,
	}
}

// LivenessHandler reports that the process is running
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, Response{
			Status:    StatusHealthy,
			Timestamp: time.Now().UTC(),
			Version:   h.version,
		})
	}
}

// ReadinessHandler runs the checks and answers 503 when any is unhealthy
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		response := h.RunChecks(ctx)
		status := http.StatusOK
		if response.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeResponse(w, status, response)
	}
}

// HealthHandler runs the checks and always answers 200 with the details
func (h *Handler) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		writeResponse(w, http.StatusOK, h.RunChecks(ctx))
	}
}

// Pinger is anything that can verify its backing connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports unhealthy when p cannot be reached
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) (Status, error) {
		if err := p.Ping(ctx); err != nil {
			return StatusUnhealthy, err
		}
		return StatusHealthy, nil
	}
}

// StorageCheck probes the blob storage adapter
func StorageCheck(adapter storage.Adapter) CheckFunc {
	return func(ctx context.Context) (Status, error) {
		if _, err := adapter.Exists(ctx, ".healthcheck"); err != nil {
			return StatusUnhealthy, err
		}
		return StatusHealthy, nil
	}
}

func writeResponse(w http.ResponseWriter, status int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode health response", slog.Any("error", err))
	}
}
