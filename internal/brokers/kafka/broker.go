// Package kafka publishes activations to a Kafka topic through
// confluent-kafka-go. Messages are keyed by trigger id so the activations of
// one trigger stay on one partition.
package kafka

import (
	"context"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/brokers/base"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
)

// Producer is the subset of *kafka.Producer the broker calls
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
	Flush(timeoutMs int) int
	Close()
}

type Broker struct {
	*base.BaseBroker
	producer Producer
}

func producerConfig(config *Config) *kafka.ConfigMap {
	configMap := kafka.ConfigMap{
		"bootstrap.servers":        strings.Join(config.Brokers, ","),
		"client.id":                config.ClientID,
		"message.send.max.retries": config.RetryMax,
		"linger.ms":                int(config.FlushFrequency.Milliseconds()),
		"message.timeout.ms":       int(config.Timeout.Milliseconds()),
	}

	if config.SecurityProtocol != "PLAINTEXT" {
		configMap["security.protocol"] = config.SecurityProtocol
	}

	if strings.HasPrefix(config.SecurityProtocol, "SASL_") {
		configMap["sasl.mechanism"] = config.SASLMechanism
		configMap["sasl.username"] = config.SASLUsername
		configMap["sasl.password"] = config.SASLPassword
	}
	return &configMap
}

func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("kafka", config)
	if err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(producerConfig(config))
	if err != nil {
		return nil, errors.ConnectionError("failed to create Kafka producer", err)
	}

	return &Broker{BaseBroker: baseBroker, producer: producer}, nil
}

// NewBrokerWithProducer creates a broker over an existing producer (for testing)
func NewBrokerWithProducer(config *Config, producer Producer) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("kafka", config)
	if err != nil {
		return nil, err
	}
	return &Broker{BaseBroker: baseBroker, producer: producer}, nil
}

// Publish produces message and waits for its delivery report or ctx
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if err := base.StandardHealthCheck(b.producer, "Kafka"); err != nil {
		return err
	}

	config := b.GetConfig().(*Config)
	topic := base.Destination(message, config.Topic)

	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Value:     message.Body,
		Timestamp: message.Timestamp,
	}
	if key := message.Headers["trigger_id"]; key != "" {
		kafkaMsg.Key = []byte(key)
	}

	headers := make([]kafka.Header, 0, len(message.Headers)+1)
	if message.MessageID != "" {
		headers = append(headers, kafka.Header{Key: "message_id", Value: []byte(message.MessageID)})
	}
	for key, value := range message.Headers {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	kafkaMsg.Headers = headers

	deliveryChan := make(chan kafka.Event, 1)
	if err := b.producer.Produce(kafkaMsg, deliveryChan); err != nil {
		return errors.ConnectionError("failed to produce message", err).WithContext("topic", topic)
	}

	select {
	case <-ctx.Done():
		return errors.ConnectionError("delivery report not received", ctx.Err()).WithContext("topic", topic)
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return errors.ConnectionError("unexpected delivery event: "+e.String(), nil)
		}
		if m.TopicPartition.Error != nil {
			return errors.ConnectionError("delivery failed", m.TopicPartition.Error).WithContext("topic", topic)
		}
		b.GetLogger().Debug("Message delivered to Kafka",
			logging.Field{Key: "message_id", Value: message.MessageID},
			logging.Field{Key: "topic", Value: topic},
			logging.Field{Key: "partition", Value: m.TopicPartition.Partition},
			logging.Field{Key: "offset", Value: m.TopicPartition.Offset.String()},
		)
		return nil
	}
}

// Health fetches the metadata of the configured topic
func (b *Broker) Health(ctx context.Context) error {
	if err := base.StandardHealthCheck(b.producer, "Kafka"); err != nil {
		return err
	}

	timeout := b.GetConfig().(*Config).Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	topic := b.GetConfig().(*Config).Topic
	if _, err := b.producer.GetMetadata(&topic, false, int(timeout.Milliseconds())); err != nil {
		return errors.ConnectionError("Kafka health check failed", err)
	}
	return nil
}

// Close flushes outstanding messages for up to the configured timeout
func (b *Broker) Close() error {
	if b.producer == nil {
		return nil
	}
	timeout := b.GetConfig().(*Config).Timeout
	if remaining := b.producer.Flush(int(timeout.Milliseconds())); remaining > 0 {
		b.GetLogger().Warn("Kafka producer closed with undelivered messages",
			logging.Field{Key: "remaining", Value: remaining},
		)
	}
	b.producer.Close()
	b.producer = nil
	return nil
}
