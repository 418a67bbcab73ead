package kafka

import (
	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/common/factory"
)

// GetFactory returns the factory for Kafka brokers
func GetFactory() brokers.BrokerFactory {
	return factory.NewBrokerFactory[*Config](
		"kafka",
		func(config *Config) (brokers.Broker, error) {
			return NewBroker(config)
		},
	)
}
