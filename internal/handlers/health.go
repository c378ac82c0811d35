package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/grocery-field/card/internal/platform/httpx"
)

// Health statuses.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	CommitSHA string
	StartedAt time.Time
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	build  BuildInfo
	clock  func() time.Time
	checks map[string]ReadinessCheck
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// NewHealthHandlers builds probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock:  time.Now,
		checks: map[string]ReadinessCheck{},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

// WithHealthBuildInfo sets the version reported by the probes.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock overrides the time source.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithReadinessCheck registers a named dependency check for /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandlers) {
		if name != "" && check != nil {
			h.checks[name] = check
		}
	}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.base(HealthStatusOK))
}

// Readyz runs every readiness check and fails with 503 when any of them errors.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := HealthStatusOK
	checks := make(map[string]any, len(names))
	for _, name := range names {
		if err := h.checks[name](r.Context()); err != nil {
			status = HealthStatusDegraded
			checks[name] = map[string]any{"status": HealthStatusDegraded, "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": HealthStatusOK}
	}

	body := h.base(status)
	body["checks"] = checks
	code := http.StatusOK
	if status != HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, code, body)
}

func (h *HealthHandlers) base(status string) map[string]any {
	now := h.clock()
	body := map[string]any{
		"status":    status,
		"uptime":    now.Sub(h.build.StartedAt).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if h.build.Version != "" {
		body["version"] = h.build.Version
	}
	if h.build.CommitSHA != "" {
		body["commitSha"] = h.build.CommitSHA
	}
	return body
}
