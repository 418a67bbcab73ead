// Package utils provides small helpers shared across the scheduler webhook service.
//
// This package contains identifier generation for activation messages and
// requests, and parsing of human readable byte sizes used by body limits.
//
// Features:
//   - Collision resistant message ids (cuid) matching the flow engine's msgid shape
//   - UUID based event ids for local timer firings
//   - Request ids for log correlation
//   - Byte size parsing ("5mb", "512kb", "1048576")
package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lucsky/cuid"
)

// NewMessageID generates the msgid attached to every activation event.
//
// Message ids are cuids: short, URL safe and monotonic enough to sort
// roughly by creation time, which keeps them readable in logs and broker
// consoles.
func NewMessageID() string {
	return cuid.New()
}

// GenerateEventID generates a unique event ID with a prefix and trigger ID.
//
// Creates an event ID in the format: "prefix-triggerID-uuid". The uuid
// suffix keeps ids unique even when two timers of the same trigger fire
// within the same clock tick.
func GenerateEventID(prefix, triggerID string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, triggerID, uuid.NewString())
}

// GenerateRequestID generates a unique request ID for tracing and correlation.
//
// Creates a request ID in the format: "req-{cuid}-{timestamp}".
func GenerateRequestID() string {
	return fmt.Sprintf("req-%s-%d", cuid.New(), time.Now().Unix())
}
