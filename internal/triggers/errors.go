package triggers

import "errors"

var (
	// ErrTriggerNotFound is returned when a trigger id is not registered
	ErrTriggerNotFound = errors.New("trigger not found")

	// ErrTriggerRemoved is returned for any operation on a trigger that reached Removed
	ErrTriggerRemoved = errors.New("trigger has been removed")

	// ErrTriggerClosed is returned when an activation arrives after the trigger was closed
	ErrTriggerClosed = errors.New("trigger is closed")

	// ErrNoEmitter is returned when a trigger fires without an activation sink
	ErrNoEmitter = errors.New("no activation emitter configured")
)
