package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http"
    "sort"
    "time"

    "github.com/labstack/echo/v4"
)

// Check probes one dependency and returns nil when it is reachable.
type Check func(ctx context.Context) error

// HealthHandler reports the status of the service and its dependencies
// for load balancers and monitoring systems.
type HealthHandler struct {
    checks map[string]Check
}

// NewHealthHandler builds a health endpoint over the named checks.  A nil
// or empty map makes the endpoint a plain liveness probe.
func NewHealthHandler(checks map[string]Check) *HealthHandler {
    return &HealthHandler{checks: checks}
}

// Health runs every check with a short deadline.  It answers 200 when all
// pass and 503 otherwise, listing each check's result.
func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    names := make([]string, 0, len(h.checks))
    for name := range h.checks {
        names = append(names, name)
    }
    sort.Strings(names)

    status := http.StatusOK
    results := make(map[string]string, len(names))
    for _, name := range names {
        if err := h.checks[name](ctx); err != nil {
            results[name] = err.Error()
            status = http.StatusServiceUnavailable
            continue
        }
        results[name] = "ok"
    }
    body := echo.Map{"status": "ok", "checks": results}
    if status != http.StatusOK {
        body["status"] = "degraded"
    }
    return c.JSON(status, body)
}
