package handlers

import (
	"net/http"
	"sort"
	"time"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/platform/httpx"
	"github.com/apexflow/api/internal/services"
)

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	system services.SystemService
	build  services.BuildInfo
	clock  func() time.Time
}

// HealthOption customises a HealthHandlers instance.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService wires the dependency prober used by /readyz.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthBuildInfo stamps release metadata onto health payloads.
func WithHealthBuildInfo(build services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthClock overrides the time source, for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs a new HealthHandlers instance.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		build: services.BuildInfo{StartedAt: time.Now().UTC()},
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz reports process liveness without touching any dependency.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	payload := map[string]any{
		"status":    domain.HealthStatusOK,
		"timestamp": now.Format(time.RFC3339),
	}
	if h.build.Version != "" {
		payload["version"] = h.build.Version
	}
	if h.build.CommitSHA != "" {
		payload["commitSha"] = h.build.CommitSHA
	}
	if h.build.Environment != "" {
		payload["environment"] = h.build.Environment
	}
	if !h.build.StartedAt.IsZero() {
		payload["uptime"] = now.Sub(h.build.StartedAt).String()
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, payload)
}

type readinessCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readinessPayload struct {
	Status      string                           `json:"status"`
	Version     string                           `json:"version,omitempty"`
	Environment string                           `json:"environment,omitempty"`
	Uptime      string                           `json:"uptime,omitempty"`
	GeneratedAt string                           `json:"generatedAt,omitempty"`
	Checks      map[string]readinessCheckPayload `json:"checks"`
	Details     []string                         `json:"details"`
}

// Readyz probes dependencies through the system service. Without one it
// degenerates to a liveness check.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("health_report_failed", "unable to generate health report", http.StatusServiceUnavailable))
		return
	}

	payload := readinessPayload{
		Status:      report.Status,
		Version:     report.Version,
		Environment: report.Environment,
		Checks:      make(map[string]readinessCheckPayload, len(report.Checks)),
		Details:     []string{},
	}
	if report.Uptime > 0 {
		payload.Uptime = report.Uptime.String()
	}
	if !report.GeneratedAt.IsZero() {
		payload.GeneratedAt = report.GeneratedAt.UTC().Format(time.RFC3339)
	}
	for name, check := range report.Checks {
		entry := readinessCheckPayload{
			Status:    check.Status,
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
		}
		if !check.CheckedAt.IsZero() {
			entry.CheckedAt = check.CheckedAt.UTC().Format(time.RFC3339)
		}
		payload.Checks[name] = entry
		if check.Status != domain.HealthStatusOK {
			payload.Details = append(payload.Details, name+": "+check.Error)
		}
	}
	sort.Strings(payload.Details)

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(ctx, w, status, payload)
}
