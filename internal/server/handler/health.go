package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// probeTimeout bounds each dependency check so one slow backend cannot stall
// the whole health response.
const probeTimeout = 2 * time.Second

// HealthHandler serves the health-check endpoint. Each registered probe is a
// dependency check (Redis ping, Postgres pool ping, S3 head-bucket) keyed by
// the dependency name.
type HealthHandler struct {
	logger *slog.Logger
	probes map[string]func(context.Context) error
}

// NewHealthHandler creates a HealthHandler with the provided logger and
// dependency probes. Probes may be nil, in which case the endpoint only
// reports process liveness.
func NewHealthHandler(logger *slog.Logger, probes map[string]func(context.Context) error) *HealthHandler {
	return &HealthHandler{logger: logger, probes: probes}
}

// HealthCheck runs all dependency probes and reports per-dependency status.
// Responds 200 when everything passes and 503 when any dependency is down.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	var depStatus map[string]string
	if len(h.probes) > 0 {
		depStatus = make(map[string]string, len(h.probes))
		for name, check := range h.probes {
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			err := check(ctx)
			cancel()

			if err != nil {
				h.logger.Warn("health probe failed",
					slog.String("dependency", name),
					slog.String("error", err.Error()),
				)
				depStatus[name] = err.Error()
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			depStatus[name] = "ok"
		}
	}

	body := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if depStatus != nil {
		body["dependencies"] = depStatus
	}
	writeJSON(w, code, body)
}
