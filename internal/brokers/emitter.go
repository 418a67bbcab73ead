package brokers

import (
	"context"
	"encoding/json"
	"time"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/triggers"
)

// Envelope is the JSON document published for each activation
type Envelope struct {
	MessageID string                    `json:"message_id"`
	Event     *triggers.ActivationEvent `json:"event"`
}

// Emitter publishes activation events through a Broker
type Emitter struct {
	broker  Broker
	topic   string
	timeout time.Duration
	logger  logging.Logger
}

// NewEmitter wraps broker. topic may be empty when the broker has its own
// destination configured.
func NewEmitter(broker Broker, topic string, logger logging.Logger) *Emitter {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Emitter{
		broker:  broker,
		topic:   topic,
		timeout: 30 * time.Second,
		logger:  logger.WithFields(logging.Field{Key: "component", Value: "emitter"}, logging.Field{Key: "broker", Value: broker.Name()}),
	}
}

// Emit encodes event and publishes it. The message id is the activation msgid.
func (e *Emitter) Emit(ctx context.Context, event *triggers.ActivationEvent) error {
	message, err := EncodeActivation(event)
	if err != nil {
		return err
	}
	message.Topic = e.topic

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := e.broker.Publish(ctx, message); err != nil {
		e.logger.Error("Failed to publish activation", err,
			logging.Field{Key: "msgid", Value: event.MsgID},
			logging.Field{Key: "trigger_id", Value: event.TriggerID},
		)
		return errors.ConnectionError("failed to publish activation", err).
			WithContext("broker", e.broker.Name())
	}

	e.logger.Debug("Activation published",
		logging.Field{Key: "msgid", Value: event.MsgID},
		logging.Field{Key: "trigger_id", Value: event.TriggerID},
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Close closes the underlying broker
func (e *Emitter) Close() error {
	return e.broker.Close()
}

// Health checks the underlying broker
func (e *Emitter) Health(ctx context.Context) error {
	return e.broker.Health(ctx)
}

// EncodeActivation renders event as a broker message
func EncodeActivation(event *triggers.ActivationEvent) (*Message, error) {
	if event == nil {
		return nil, errors.ValidationError("activation event is required")
	}
	body, err := json.Marshal(Envelope{MessageID: event.MsgID, Event: event})
	if err != nil {
		return nil, errors.InternalError("failed to encode activation", err).
			WithContext("msgid", event.MsgID)
	}

	return &Message{
		MessageID: event.MsgID,
		Body:      body,
		Timestamp: event.Timestamp,
		Headers: map[string]string{
			"trigger_id":   event.TriggerID,
			"source":       string(event.Source),
			"content_type": "application/json",
		},
	}, nil
}

// Tee emits to every emitter in order and returns the first error. Later
// emitters still run when an earlier one fails.
type Tee []triggers.Emitter

func (t Tee) Emit(ctx context.Context, event *triggers.ActivationEvent) error {
	var first error
	for _, emitter := range t {
		if emitter == nil {
			continue
		}
		if err := emitter.Emit(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
