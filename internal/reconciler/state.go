package reconciler

import (
	"time"

	"scheduler-webhook/internal/triggers"
)

// State is the reconciliation state of one trigger
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateValidating   State = "validating"
	StateSyncing      State = "syncing"
	StateConverged    State = "converged"
	StateDeleting     State = "deleting"
	StateRemoved      State = "removed"
)

// Terminal reports whether no further operations are valid
func (s State) Terminal() bool {
	return s == StateRemoved
}

// Status is a point-in-time view of a reconciler
type Status struct {
	TriggerID   string        `json:"triggerId"`
	State       State         `json:"state"`
	Mode        triggers.Mode `json:"mode"`
	Closed      bool          `json:"closed"`
	JobName     string        `json:"jobName,omitempty"`
	RemoteState string        `json:"remoteState,omitempty"`
	Route       string        `json:"route,omitempty"`
	LastError   string        `json:"lastError,omitempty"`
	LastSynced  *time.Time    `json:"lastSynced,omitempty"`
	NextFire    *time.Time    `json:"nextFire,omitempty"`
	Fires       int64         `json:"fires"`
}
