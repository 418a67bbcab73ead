// Package memory is the in-process activation sink. It keeps the most
// recent events for inspection and fans each one out to subscribers
// synchronously, so subscribers may still use the event's Response.
package memory

import (
	"context"
	"sync"

	"scheduler-webhook/internal/triggers"
)

// DefaultCapacity is the number of events kept when New gets zero
const DefaultCapacity = 100

// Subscriber receives every emitted event. A returned error fails the Emit.
type Subscriber func(ctx context.Context, event *triggers.ActivationEvent) error

type Emitter struct {
	mu          sync.RWMutex
	capacity    int
	events      []*triggers.ActivationEvent
	subscribers map[int]Subscriber
	nextID      int
}

func New(capacity int) *Emitter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Emitter{
		capacity:    capacity,
		subscribers: make(map[int]Subscriber),
	}
}

func (e *Emitter) Emit(ctx context.Context, event *triggers.ActivationEvent) error {
	stored := *event
	stored.Response = nil

	e.mu.Lock()
	e.events = append(e.events, &stored)
	if over := len(e.events) - e.capacity; over > 0 {
		e.events = append(e.events[:0:0], e.events[over:]...)
	}
	subscribers := make([]Subscriber, 0, len(e.subscribers))
	for id := 0; id < e.nextID; id++ {
		if fn, ok := e.subscribers[id]; ok {
			subscribers = append(subscribers, fn)
		}
	}
	e.mu.Unlock()

	for _, fn := range subscribers {
		if err := fn(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers fn and returns a function that removes it
func (e *Emitter) Subscribe(fn Subscriber) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subscribers[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subscribers, id)
			e.mu.Unlock()
		})
	}
}

// Recent returns up to limit events, oldest first. limit <= 0 returns all.
func (e *Emitter) Recent(limit int) []*triggers.ActivationEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()

	events := e.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]*triggers.ActivationEvent, len(events))
	copy(out, events)
	return out
}

// ForTrigger returns the kept events of one trigger, oldest first
func (e *Emitter) ForTrigger(triggerID string) []*triggers.ActivationEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []*triggers.ActivationEvent
	for _, ev := range e.events {
		if ev.TriggerID == triggerID {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of kept events
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.events)
}
