package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HealthCheck is the readiness report.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult is the outcome of one dependency probe.
type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Database is what readiness needs from the store.
type Database interface {
	Ping(ctx context.Context) error
	SchemaStatus(ctx context.Context) (version int64, dirty bool, err error)
}

type HealthChecker struct {
	db      Database
	version string
	timeout time.Duration
	now     func() time.Time
}

func NewHealthChecker(db Database, version string) *HealthChecker {
	return &HealthChecker{
		db:      db,
		version: version,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
}

// Healthz reports liveness only; it never touches the database.
func (h *HealthChecker) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports 200 when the database answers and migrations are clean,
// 503 otherwise.
func (h *HealthChecker) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]CheckResult{
		"database":   h.checkDatabase(ctx),
		"migrations": h.checkMigrations(ctx),
	}

	status, code := "ready", http.StatusOK
	for _, check := range checks {
		if check.Status != "pass" {
			status, code = "unavailable", http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, code, HealthCheck{
		Status:    status,
		Version:   h.version,
		Checks:    checks,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	start := h.now()
	if h.db == nil {
		return CheckResult{Status: "fail", Message: "database not configured"}
	}
	if err := h.db.Ping(ctx); err != nil {
		return CheckResult{Status: "fail", Message: "database unreachable", LatencyMs: h.since(start)}
	}
	return CheckResult{Status: "pass", LatencyMs: h.since(start)}
}

func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	start := h.now()
	if h.db == nil {
		return CheckResult{Status: "fail", Message: "database not configured"}
	}
	version, dirty, err := h.db.SchemaStatus(ctx)
	switch {
	case err != nil:
		return CheckResult{Status: "fail", Message: "schema version unavailable", LatencyMs: h.since(start)}
	case dirty:
		return CheckResult{Status: "fail", Message: fmt.Sprintf("migration %d is dirty", version), LatencyMs: h.since(start)}
	}
	return CheckResult{Status: "pass", Message: fmt.Sprintf("version %d", version), LatencyMs: h.since(start)}
}

func (h *HealthChecker) since(start time.Time) int64 {
	return h.now().Sub(start).Milliseconds()
}
