// Package rabbitmq publishes activations over AMQP. Connections come from a
// fixed-size pool; each publish borrows a channel, declares the durable
// queue and optional direct exchange, and publishes a persistent message.
package rabbitmq

import (
	"context"

	"github.com/streadway/amqp"

	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/brokers/base"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
)

// Broker implements brokers.Broker for RabbitMQ
type Broker struct {
	*base.BaseBroker
	pool ConnectionPoolInterface
}

// NewBroker validates config and dials the connection pool
func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("rabbitmq", config)
	if err != nil {
		return nil, err
	}

	pool, err := NewConnectionPool(config.URL, config.PoolSize)
	if err != nil {
		return nil, errors.ConnectionError("failed to create RabbitMQ connection pool", err)
	}

	return &Broker{BaseBroker: baseBroker, pool: pool}, nil
}

// NewBrokerWithPool creates a broker with an injected connection pool (for testing)
func NewBrokerWithPool(config *Config, pool ConnectionPoolInterface) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("rabbitmq", config)
	if err != nil {
		return nil, err
	}
	return &Broker{BaseBroker: baseBroker, pool: pool}, nil
}

// Publish sends message as a persistent JSON delivery. Message.Topic
// overrides the configured queue.
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if err := base.StandardHealthCheck(b.pool, "RabbitMQ"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.ConnectionError("publish cancelled", err)
	}

	config := b.GetConfig().(*Config)
	queue := base.Destination(message, config.Queue)
	routingKey := queue
	if config.Exchange != "" {
		routingKey = config.RoutingKey
	}

	client, err := b.pool.NewClient()
	if err != nil {
		return errors.ConnectionError("failed to get RabbitMQ client", err)
	}
	defer client.Close()

	headers := amqp.Table{}
	for key, value := range message.Headers {
		headers[key] = value
	}

	err = client.PublishActivation(queue, config.Exchange, routingKey, amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    message.MessageID,
		Timestamp:    message.Timestamp,
		Body:         message.Body,
	})
	if err != nil {
		return errors.ConnectionError("failed to publish to RabbitMQ", err).
			WithContext("queue", queue)
	}

	b.GetLogger().Debug("Message published to RabbitMQ",
		logging.Field{Key: "message_id", Value: message.MessageID},
		logging.Field{Key: "queue", Value: queue},
		logging.Field{Key: "exchange", Value: config.Exchange},
	)
	return nil
}

// Health opens a channel and passively declares a temporary queue
func (b *Broker) Health(ctx context.Context) error {
	if err := base.StandardHealthCheck(b.pool, "RabbitMQ"); err != nil {
		return err
	}

	client, err := b.pool.NewClient()
	if err != nil {
		return errors.ConnectionError("failed to get RabbitMQ client for health check", err)
	}
	defer client.Close()

	if _, err := client.QueueDeclare("health-check-temp", false, true, false, false, nil); err != nil {
		return errors.ConnectionError("RabbitMQ health check failed", err)
	}
	return nil
}

// Close closes every pooled connection
func (b *Broker) Close() error {
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
	return nil
}
