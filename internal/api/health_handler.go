package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/climblog/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the service.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// Pinger is anything with a context-aware ping: *sql.DB, the export store,
// or a Redis client wrapped in a PingFunc.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type namedCheck struct {
	name     string
	pinger   Pinger
	timeout  time.Duration
	slow     time.Duration
	critical bool
}

// HealthChecker reports on the database, Redis and the export bucket. Any
// dependency may be nil and is then reported as "not configured".
type HealthChecker struct {
	checks    []namedCheck
	startTime time.Time
}

func NewHealthChecker(db, redis, exports Pinger) *HealthChecker {
	return &HealthChecker{
		checks: []namedCheck{
			{name: "database", pinger: db, timeout: 3 * time.Second, slow: time.Second, critical: true},
			{name: "redis", pinger: redis, timeout: 2 * time.Second, slow: 500 * time.Millisecond},
			{name: "exports", pinger: exports, timeout: 3 * time.Second, slow: 2 * time.Second},
		},
		startTime: time.Now(),
	}
}

const healthVersion = "1.0.0"

// HandleHealth always answers 200; the body carries the status.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  hc.determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  time.Since(hc.startTime).Round(time.Second).String(),
		Checks:  checks,
	})
}

// HandleReadiness answers 503 when a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := hc.determineOverallStatus(checks)

	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]any{
		"ready":  overall != "unhealthy",
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, len(hc.checks))
	for _, c := range hc.checks {
		go func(c namedCheck) { ch <- result{c.name, ping(ctx, c)} }(c)
	}

	checks := make(map[string]ComponentCheck, len(hc.checks))
	for range hc.checks {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

func ping(ctx context.Context, c namedCheck) ComponentCheck {
	if c.pinger == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.pinger.PingContext(pingCtx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	if latency > c.slow {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// determineOverallStatus: "unhealthy" when a configured critical dependency
// is down, "degraded" when anything configured is down or slow.
func (hc *HealthChecker) determineOverallStatus(checks map[string]ComponentCheck) string {
	for _, c := range hc.checks {
		if got := checks[c.name]; c.critical && got.Status == "down" && got.Message != "not configured" {
			return "unhealthy"
		}
	}
	for _, c := range checks {
		if c.Status == "degraded" {
			return "degraded"
		}
		if c.Status == "down" && c.Message != "not configured" {
			return "degraded"
		}
	}
	return "healthy"
}
