package brokers_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduler-webhook/internal/brokers"
	apperrors "scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/triggers"
)

type fakeBroker struct {
	mu        sync.Mutex
	published []*brokers.Message
	err       error
	closed    bool
}

func (f *fakeBroker) Name() string { return "fake" }

func (f *fakeBroker) Publish(ctx context.Context, message *brokers.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, message)
	return nil
}

func (f *fakeBroker) Health(ctx context.Context) error { return nil }

func (f *fakeBroker) Close() error {
	f.closed = true
	return nil
}

func activation() *triggers.ActivationEvent {
	return &triggers.ActivationEvent{
		MsgID:     "msg-1",
		TriggerID: "t1",
		Source:    triggers.SourceHTTP,
		Payload:   map[string]interface{}{"a": "1"},
		Timestamp: time.Unix(1700000000, 0).UTC(),
	}
}

func TestEmitter_PublishesEnvelope(t *testing.T) {
	broker := &fakeBroker{}
	em := brokers.NewEmitter(broker, "activations", logging.NewRecorder())

	require.NoError(t, em.Emit(context.Background(), activation()))

	require.Len(t, broker.published, 1)
	msg := broker.published[0]
	assert.Equal(t, "msg-1", msg.MessageID)
	assert.Equal(t, "activations", msg.Topic)
	assert.Equal(t, "t1", msg.Headers["trigger_id"])
	assert.Equal(t, "http", msg.Headers["source"])

	var env struct {
		MessageID string `json:"message_id"`
		Event     struct {
			MsgID     string                 `json:"_msgid"`
			TriggerID string                 `json:"triggerId"`
			Payload   map[string]interface{} `json:"payload"`
		} `json:"event"`
	}
	require.NoError(t, json.Unmarshal(msg.Body, &env))
	assert.Equal(t, "msg-1", env.MessageID)
	assert.Equal(t, "msg-1", env.Event.MsgID)
	assert.Equal(t, "1", env.Event.Payload["a"])
}

func TestEmitter_PublishFailure(t *testing.T) {
	broker := &fakeBroker{err: errors.New("down")}
	rec := logging.NewRecorder()
	em := brokers.NewEmitter(broker, "", rec)

	err := em.Emit(context.Background(), activation())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConnection))
	assert.True(t, rec.HasMessage(logging.ErrorLevel, "Failed to publish activation"))
}

func TestEmitter_Close(t *testing.T) {
	broker := &fakeBroker{}
	em := brokers.NewEmitter(broker, "", nil)
	require.NoError(t, em.Close())
	assert.True(t, broker.closed)
}

func TestEncodeActivation_Nil(t *testing.T) {
	_, err := brokers.EncodeActivation(nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestTee(t *testing.T) {
	var calls []string
	record := func(name string, err error) triggers.Emitter {
		return triggers.EmitterFunc(func(ctx context.Context, ev *triggers.ActivationEvent) error {
			calls = append(calls, name)
			return err
		})
	}
	first := errors.New("first")

	tee := brokers.Tee{record("a", nil), nil, record("b", first), record("c", errors.New("second"))}
	err := tee.Emit(context.Background(), activation())

	assert.ErrorIs(t, err, first)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
}
