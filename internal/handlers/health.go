package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"scheduler-webhook/internal/common/logging"
)

const healthTimeout = 5 * time.Second

type healthResponse struct {
	Status   string            `json:"status"`
	Triggers int               `json:"triggers"`
	Checks   map[string]string `json:"checks"`
}

// Health probes every registered dependency
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} healthResponse "Healthy"
// @Failure 503 {object} healthResponse "A dependency is unhealthy"
// @Router /health [get]
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{
		Status:   "healthy",
		Triggers: len(h.manager.List()),
		Checks:   make(map[string]string, len(names)),
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WithContext(r.Context()).Warn("Health check failed",
				logging.Field{Key: "check", Value: name},
				logging.Err(err),
			)
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
