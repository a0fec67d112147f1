package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// ReadinessProbe reports whether a single dependency can serve traffic.
type ReadinessProbe func(ctx context.Context) error

// HealthHandlers serves liveness and readiness endpoints.
type HealthHandlers struct {
	clock   func() time.Time
	started time.Time
	version string
	probes  map[string]ReadinessProbe
}

// HealthOption customises health handler construction.
type HealthOption func(*HealthHandlers)

// WithHealthClock overrides the time source used in responses.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthVersion records the build version reported by the liveness endpoint.
func WithHealthVersion(version string) HealthOption {
	return func(h *HealthHandlers) {
		h.version = version
	}
}

// WithReadinessProbe registers a named dependency check for the readiness endpoint.
func WithReadinessProbe(name string, probe ReadinessProbe) HealthOption {
	return func(h *HealthHandlers) {
		if name == "" || probe == nil {
			return
		}
		h.probes[name] = probe
	}
}

// NewHealthHandlers constructs health handlers with optional overrides.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	handlers := &HealthHandlers{
		clock:  time.Now,
		probes: make(map[string]ReadinessProbe),
	}
	for _, opt := range opts {
		opt(handlers)
	}
	handlers.started = handlers.clock().UTC()
	return handlers
}

// Routes registers health endpoints on the provided router.
func (h *HealthHandlers) Routes(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	payload := map[string]any{
		"status":         "ok",
		"time":           formatTime(now),
		"uptime_seconds": int64(now.Sub(h.started).Seconds()),
	}
	if h.version != "" {
		payload["version"] = h.version
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz runs every registered dependency probe and degrades to 503 when any fails.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.probes))
	var details []string
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.probes[name](r.Context()); err != nil {
			checks[name] = "unavailable"
			details = append(details, name+": "+err.Error())
			continue
		}
		checks[name] = "ok"
	}
	payload := map[string]any{
		"status": "ok",
		"time":   formatTime(h.clock().UTC()),
		"checks": checks,
	}
	status := http.StatusOK
	if len(details) > 0 {
		payload["status"] = "degraded"
		payload["details"] = details
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, payload)
}
