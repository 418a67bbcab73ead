// Package brokers carries activation events out of the process. Each broker
// type publishes JSON-encoded events to a stream, topic or queue; Emitter
// adapts a broker to the trigger runtime.
package brokers

import (
	"context"
	"time"
)

// Broker publishes messages to one external destination
type Broker interface {
	Name() string
	Publish(ctx context.Context, message *Message) error
	Health(ctx context.Context) error
	Close() error
}

type BrokerConfig interface {
	Validate() error
	GetConnectionString() string
	GetType() string
}

// Message is the broker-neutral envelope. Topic overrides the destination
// configured on the broker when set.
type Message struct {
	Topic     string
	Headers   map[string]string
	Body      []byte
	Timestamp time.Time
	MessageID string
}

type BrokerFactory interface {
	Create(config BrokerConfig) (Broker, error)
	GetType() string
}
