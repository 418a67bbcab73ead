package handlers

import (
	"net/http"
	"strconv"

	"scheduler-webhook/internal/triggers"
)

const defaultActivationLimit = 50

// GetActivations returns recent activation events, oldest first
// @Summary Recent activations
// @Tags activations
// @Produce json
// @Param limit query int false "Maximum number of events"
// @Param trigger query string false "Only events of this trigger"
// @Success 200 {array} triggers.ActivationEvent "Activation events"
// @Failure 400 {object} errorResponse "Invalid limit"
// @Router /api/activations [get]
func (h *Handlers) GetActivations(w http.ResponseWriter, r *http.Request) {
	if h.activations == nil {
		writeJSON(w, http.StatusOK, []*triggers.ActivationEvent{})
		return
	}

	limit := defaultActivationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	var events []*triggers.ActivationEvent
	if id := r.URL.Query().Get("trigger"); id != "" {
		events = h.activations.ForTrigger(id)
		if limit > 0 && len(events) > limit {
			events = events[len(events)-limit:]
		}
	} else {
		events = h.activations.Recent(limit)
	}
	if events == nil {
		events = []*triggers.ActivationEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
