package triggers

import (
	"context"
	"net/http"
	"time"

	"scheduler-webhook/internal/bodyparser"
	"scheduler-webhook/internal/response"
)

// Source identifies what fired an activation
type Source string

const (
	SourceHTTP     Source = "http"
	SourceInterval Source = "interval"
	SourceOnce     Source = "once"
	SourceInject   Source = "inject"
)

// RequestMetadata describes the inbound call behind an HTTP activation
type RequestMetadata struct {
	Method     string              `json:"method"`
	Path       string              `json:"path"`
	Params     map[string]string   `json:"params,omitempty"`
	Query      map[string][]string `json:"query,omitempty"`
	Headers    http.Header         `json:"headers,omitempty"`
	Cookies    map[string]string   `json:"cookies,omitempty"`
	RemoteAddr string              `json:"remoteAddr,omitempty"`
	Files      []bodyparser.File   `json:"files,omitempty"`
}

// ActivationEvent is handed to the flow engine each time a trigger fires
type ActivationEvent struct {
	MsgID       string           `json:"_msgid"`
	TriggerID   string           `json:"triggerId"`
	TriggerName string           `json:"triggerName,omitempty"`
	Source      Source           `json:"source"`
	Payload     interface{}      `json:"payload,omitempty"`
	Request     *RequestMetadata `json:"req,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`

	// Response is only set for HTTP activations and is only usable until
	// Emit returns.
	Response response.Responder `json:"-"`
}

// Emitter delivers activation events into the flow engine
type Emitter interface {
	Emit(ctx context.Context, event *ActivationEvent) error
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(ctx context.Context, event *ActivationEvent) error

// Emit calls f
func (f EmitterFunc) Emit(ctx context.Context, event *ActivationEvent) error {
	return f(ctx, event)
}
