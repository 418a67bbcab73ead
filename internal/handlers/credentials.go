package handlers

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
)

type credentialResponse struct {
	Ref       string   `json:"ref"`
	ProjectID string   `json:"projectId"`
	Triggers  []string `json:"triggers"`
}

// PutCredential stores a service account key encrypted under ref and
// re-runs the pass of every trigger that references it
// @Summary Store scheduler credentials
// @Tags credentials
// @Accept json
// @Produce json
// @Param ref path string true "Credentials reference"
// @Success 200 {object} credentialResponse "Credentials stored"
// @Failure 400 {object} errorResponse "Invalid service account key"
// @Failure 503 {object} errorResponse "No encryption key configured"
// @Router /api/credentials/{ref} [put]
func (h *Handlers) PutCredential(w http.ResponseWriter, r *http.Request) {
	if h.credentials == nil {
		writeError(w, http.StatusServiceUnavailable, "credential storage requires CONFIG_ENCRYPTION_KEY")
		return
	}

	ref := mux.Vars(r)["ref"]
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.decoder.MaxBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	creds, err := h.credentials.Save(r.Context(), ref, raw)
	if err != nil {
		switch errors.GetType(err) {
		case errors.ErrTypeCredentials, errors.ErrTypeValidation:
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.WithContext(r.Context()).Error("Failed to store credentials", err, logging.Field{Key: "credentials_ref", Value: ref})
			writeError(w, http.StatusInternalServerError, "Failed to store credentials")
		}
		return
	}

	if h.clients != nil {
		h.clients.Forget(ref)
	}
	ids := h.manager.RefreshCredentials(r.Context(), ref)
	if ids == nil {
		ids = []string{}
	}

	h.logger.WithContext(r.Context()).Info("Credentials stored",
		logging.Field{Key: "credentials_ref", Value: ref},
		logging.Field{Key: "project_id", Value: creds.ProjectID},
		logging.Field{Key: "trigger_count", Value: len(ids)},
	)
	writeJSON(w, http.StatusOK, credentialResponse{Ref: ref, ProjectID: creds.ProjectID, Triggers: ids})
}
