package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/common/pagination"
	"scheduler-webhook/internal/reconciler"
	"scheduler-webhook/internal/triggers"
	"scheduler-webhook/internal/triggers/manager"
	"scheduler-webhook/internal/triggers/webhook"
)

// TriggerView is a trigger as the admin API reports it
type TriggerView struct {
	Config        triggers.Config   `json:"config"`
	Status        reconciler.Status `json:"status"`
	LastExecution *time.Time        `json:"lastExecution,omitempty"`
	Error         string            `json:"error,omitempty"`
}

func viewOf(node *webhook.Node) TriggerView {
	return TriggerView{
		Config:        node.Config(),
		Status:        node.Status(),
		LastExecution: node.LastExecution(),
	}
}

// GetTriggers returns one page of deployed triggers ordered by id
// @Summary Get all triggers
// @Tags triggers
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Triggers per page"
// @Success 200 {object} pagination.Response[TriggerView] "Page of triggers"
// @Failure 400 {object} errorResponse "Invalid pagination parameters"
// @Router /api/triggers [get]
func (h *Handlers) GetTriggers(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.ParseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	nodes := h.manager.List()
	views := make([]TriggerView, 0, len(nodes))
	for _, node := range nodes {
		views = append(views, viewOf(node))
	}
	writeJSON(w, http.StatusOK, pagination.Paginate(views, params))
}

// GetTrigger returns one trigger with its reconciler state
// @Summary Get trigger
// @Tags triggers
// @Produce json
// @Param id path string true "Trigger ID"
// @Success 200 {object} TriggerView "Trigger"
// @Failure 404 {object} errorResponse "Trigger not found"
// @Router /api/triggers/{id} [get]
func (h *Handlers) GetTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	node, ok := h.manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, triggers.ErrTriggerNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(node))
}

// CreateTrigger deploys a trigger under a generated id
// @Summary Create trigger
// @Tags triggers
// @Accept json
// @Produce json
// @Param trigger body triggers.Config true "Trigger configuration"
// @Success 201 {object} TriggerView "Created trigger"
// @Failure 400 {object} errorResponse "Invalid JSON"
// @Failure 422 {object} errorResponse "Invalid configuration"
// @Router /api/triggers [post]
func (h *Handlers) CreateTrigger(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.decodeConfig(w, r)
	if !ok {
		return
	}
	cfg.ID = manager.NewID()
	h.apply(w, r, cfg, true)
}

// UpdateTrigger creates or edits the trigger named in the path. The pass runs
// before the response is written.
// @Summary Create or update trigger
// @Tags triggers
// @Accept json
// @Produce json
// @Param id path string true "Trigger ID"
// @Param trigger body triggers.Config true "Trigger configuration"
// @Success 200 {object} TriggerView "Updated trigger"
// @Success 201 {object} TriggerView "Created trigger"
// @Failure 400 {object} errorResponse "Invalid JSON or id mismatch"
// @Failure 422 {object} TriggerView "Invalid configuration"
// @Failure 424 {object} TriggerView "Credentials unavailable"
// @Failure 502 {object} TriggerView "Scheduler call failed"
// @Router /api/triggers/{id} [put]
func (h *Handlers) UpdateTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cfg, ok := h.decodeConfig(w, r)
	if !ok {
		return
	}
	if cfg.ID != "" && strings.TrimSpace(cfg.ID) != id {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("trigger id %q does not match path id %q", cfg.ID, id))
		return
	}
	cfg.ID = id

	_, existed := h.manager.Get(id)
	h.apply(w, r, cfg, !existed)
}

func (h *Handlers) decodeConfig(w http.ResponseWriter, r *http.Request) (triggers.Config, bool) {
	var cfg triggers.Config
	r.Body = http.MaxBytesReader(w, r.Body, h.decoder.MaxBytes)
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return cfg, false
	}
	return cfg, true
}

func (h *Handlers) apply(w http.ResponseWriter, r *http.Request, cfg triggers.Config, created bool) {
	node, err := h.manager.Apply(r.Context(), cfg)
	if node == nil {
		if stderrors.Is(err, manager.ErrShutdown) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, reconciler.StatusCode(err), err.Error())
		return
	}

	view := viewOf(node)
	if err != nil {
		view.Error = err.Error()
		writeJSON(w, reconciler.StatusCode(err), view)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, view)
}

// DeleteTrigger removes a trigger, its route and its remote job
// @Summary Delete trigger
// @Tags triggers
// @Param id path string true "Trigger ID"
// @Success 204 "Trigger removed"
// @Failure 404 {object} errorResponse "Trigger not found"
// @Failure 502 {object} errorResponse "Removed locally, remote job not deleted"
// @Router /api/triggers/{id} [delete]
func (h *Handlers) DeleteTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := h.manager.Remove(r.Context(), id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case stderrors.Is(err, triggers.ErrTriggerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case reconciler.StatusCode(err) == http.StatusBadGateway:
		writeError(w, http.StatusBadGateway, fmt.Sprintf("trigger removed locally but its scheduler job was not deleted: %v", err))
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// RedeployTrigger restarts a trigger from its current configuration
// @Summary Redeploy trigger
// @Tags triggers
// @Produce json
// @Param id path string true "Trigger ID"
// @Success 200 {object} TriggerView "Redeployed trigger"
// @Failure 404 {object} errorResponse "Trigger not found"
// @Router /api/triggers/{id}/redeploy [post]
func (h *Handlers) RedeployTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	node, err := h.manager.Redeploy(r.Context(), id)
	switch {
	case stderrors.Is(err, triggers.ErrTriggerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case stderrors.Is(err, manager.ErrShutdown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		view := viewOf(node)
		view.Error = err.Error()
		writeJSON(w, reconciler.StatusCode(err), view)
	default:
		writeJSON(w, http.StatusOK, viewOf(node))
	}
}

type fireResponse struct {
	MsgID string `json:"msgid"`
}

// FireTrigger injects an activation into a trigger. A JSON body becomes the
// payload as a value; any other body is decoded like an inbound request.
// @Summary Fire trigger manually
// @Tags triggers
// @Accept json
// @Produce json
// @Param id path string true "Trigger ID"
// @Success 200 {object} fireResponse "Activation emitted"
// @Failure 400 {object} errorResponse "Invalid JSON payload"
// @Failure 404 {object} errorResponse "Trigger not found"
// @Failure 500 {object} errorResponse "Body unreadable or injection failed"
// @Router /trigger/{id} [post]
func (h *Handlers) FireTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	payload, err := h.firePayload(r)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeBodyRead) {
			h.logger.WithContext(r.Context()).Warn("Manual fire body could not be read",
				logging.Err(err),
				logging.Field{Key: "trigger_id", Value: id},
			)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgID, err := h.manager.Inject(r.Context(), id, payload)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, fireResponse{MsgID: msgID})
	case stderrors.Is(err, triggers.ErrTriggerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.WithContext(r.Context()).Error("Manual fire failed", err, logging.Field{Key: "trigger_id", Value: id})
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handlers) firePayload(r *http.Request) (interface{}, error) {
	body, err := h.decoder.DecodeRequest(r)
	if err != nil {
		return nil, err
	}
	if body.Len() == 0 {
		return nil, nil
	}
	if isJSON(r.Header.Get("Content-Type")) {
		var v interface{}
		if err := json.Unmarshal([]byte(body.Text), &v); err != nil {
			return nil, fmt.Errorf("invalid JSON payload: %w", err)
		}
		return v, nil
	}
	return body.Value(), nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
