// Package handlers implements the admin API of the host runtime: trigger
// management, manual fire, credential upload, recent activations and health.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"scheduler-webhook/internal/bodyparser"
	"scheduler-webhook/internal/brokers/memory"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/credentials"
	"scheduler-webhook/internal/triggers/manager"
)

// CredentialSaver stores an uploaded service account key
type CredentialSaver interface {
	Save(ctx context.Context, ref string, raw []byte) (*credentials.Credentials, error)
}

// ClientCache drops cached scheduler clients built from a reference
type ClientCache interface {
	Forget(ref string)
}

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	manager     *manager.Manager
	credentials CredentialSaver
	clients     ClientCache
	activations *memory.Emitter
	checks      map[string]HealthCheck
	decoder     *bodyparser.Decoder
	logger      logging.Logger
}

// Options carries the optional collaborators of Handlers
type Options struct {
	// Credentials is nil when no encryption key is configured
	Credentials CredentialSaver
	Clients     ClientCache
	Activations *memory.Emitter
	Checks      map[string]HealthCheck
	MaxBodySize int64
	Logger      logging.Logger
}

func New(m *manager.Manager, opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	checks := opts.Checks
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &Handlers{
		manager:     m,
		credentials: opts.Credentials,
		clients:     opts.Clients,
		activations: opts.Activations,
		checks:      checks,
		decoder:     bodyparser.NewDecoder(opts.MaxBodySize),
		logger:      logger.WithFields(logging.Field{Key: "component", Value: "admin_api"}),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
