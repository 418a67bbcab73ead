// Package gcp publishes activations to a Google Cloud Pub/Sub topic.
package gcp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"

	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/brokers/base"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
)

// Broker implements brokers.Broker for Pub/Sub
type Broker struct {
	*base.BaseBroker
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewBroker creates the client and checks, or creates, the topic.
// Without credentials in config Application Default Credentials are used.
func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("gcp", config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	client, err := pubsub.NewClient(context.Background(), config.ProjectID, config.clientOptions()...)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Pub/Sub client", err)
	}

	topic := client.Topic(config.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to check topic existence", err)
	}
	if !exists {
		if !config.CreateTopic {
			client.Close()
			return nil, errors.ConfigError(fmt.Sprintf("topic %s does not exist", config.TopicID))
		}
		if topic, err = client.CreateTopic(ctx, config.TopicID); err != nil {
			client.Close()
			return nil, errors.ConnectionError("failed to create topic", err)
		}
		baseBroker.GetLogger().Info("Created Pub/Sub topic", logging.Field{Key: "topic_id", Value: config.TopicID})
	}

	topic.PublishSettings.NumGoroutines = 2
	topic.PublishSettings.CountThreshold = 10
	topic.PublishSettings.DelayThreshold = 100 * time.Millisecond
	topic.EnableMessageOrdering = config.EnableMessageOrdering

	return &Broker{
		BaseBroker: baseBroker,
		client:     client,
		topic:      topic,
	}, nil
}

// Publish sends message to the configured topic and waits for the server
// id. Message.Topic is ignored; a broker is bound to one topic.
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if b.client == nil || b.topic == nil {
		return errors.ConnectionError("not connected to Pub/Sub", nil)
	}

	pubsubMsg := &pubsub.Message{
		Data:       message.Body,
		Attributes: make(map[string]string, len(message.Headers)+2),
	}
	if message.MessageID != "" {
		pubsubMsg.Attributes["message_id"] = message.MessageID
	}
	pubsubMsg.Attributes["timestamp"] = strconv.FormatInt(message.Timestamp.UnixNano(), 10)
	for key, value := range message.Headers {
		pubsubMsg.Attributes[key] = value
	}

	if config := b.GetConfig().(*Config); config.EnableMessageOrdering {
		pubsubMsg.OrderingKey = config.OrderingKey
	}

	serverID, err := b.topic.Publish(ctx, pubsubMsg).Get(ctx)
	if err != nil {
		return errors.ConnectionError("failed to publish message", err).
			WithContext("topic_id", b.topic.ID())
	}

	b.GetLogger().Debug("Message published to Pub/Sub",
		logging.Field{Key: "message_id", Value: message.MessageID},
		logging.Field{Key: "server_id", Value: serverID},
		logging.Field{Key: "topic_id", Value: b.topic.ID()},
	)
	return nil
}

// Health fetches the topic configuration
func (b *Broker) Health(ctx context.Context) error {
	if b.client == nil || b.topic == nil {
		return errors.ConnectionError("not connected to Pub/Sub", nil)
	}
	if _, err := b.topic.Config(ctx); err != nil {
		return errors.ConnectionError("failed to get topic config", err)
	}
	return nil
}

// Close flushes pending publishes and closes the client
func (b *Broker) Close() error {
	if b.topic != nil {
		b.topic.Stop()
		b.topic = nil
	}
	if b.client != nil {
		client := b.client
		b.client = nil
		return client.Close()
	}
	return nil
}
