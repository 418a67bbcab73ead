// Package redis publishes activations to Redis Streams. Each activation is
// one stream entry carrying the JSON body, message id and headers as fields.
package redis

import (
	"context"
	"strconv"

	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/brokers/base"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
	redisclient "scheduler-webhook/internal/redis"
)

// Broker implements brokers.Broker for Redis Streams
type Broker struct {
	*base.BaseBroker
	client *redisclient.Client
	owned  bool
}

// NewBroker connects to Redis with its own client
func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("redis", config)
	if err != nil {
		return nil, err
	}

	client, err := redisclient.NewClient(&redisclient.Config{
		Address:  config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})
	if err != nil {
		return nil, err
	}

	return &Broker{BaseBroker: baseBroker, client: client, owned: true}, nil
}

// NewBrokerWithClient publishes through an existing client. Close leaves
// the client open.
func NewBrokerWithClient(config *Config, client *redisclient.Client) (*Broker, error) {
	if client == nil {
		return nil, errors.ConfigError("redis client is required")
	}
	baseBroker, err := base.NewBaseBroker("redis", config)
	if err != nil {
		return nil, err
	}
	return &Broker{BaseBroker: baseBroker, client: client}, nil
}

// Publish appends message to its stream
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if b.client == nil {
		return errors.ConnectionError("Redis broker not connected", nil)
	}

	config := b.GetConfig().(*Config)
	stream := base.Destination(message, config.Stream)

	fields := map[string]interface{}{
		"body":       string(message.Body),
		"timestamp":  strconv.FormatInt(message.Timestamp.UnixNano(), 10),
		"message_id": message.MessageID,
	}
	for key, value := range message.Headers {
		fields["header_"+key] = value
	}

	id, err := b.client.AppendStream(ctx, stream, config.StreamMaxLen, fields)
	if err != nil {
		return errors.ConnectionError("failed to publish to Redis stream", err).
			WithContext("stream", stream)
	}

	b.GetLogger().Debug("Message added to Redis stream",
		logging.Field{Key: "stream", Value: stream},
		logging.Field{Key: "stream_id", Value: id},
		logging.Field{Key: "message_id", Value: message.MessageID},
	)
	return nil
}

func (b *Broker) Health(ctx context.Context) error {
	if b.client == nil {
		return errors.ConnectionError("Redis broker not connected", nil)
	}
	return b.client.Health(ctx)
}

// Close closes the client when the broker created it
func (b *Broker) Close() error {
	if b.client == nil {
		return nil
	}
	client := b.client
	b.client = nil
	if b.owned {
		return client.Close()
	}
	return nil
}
