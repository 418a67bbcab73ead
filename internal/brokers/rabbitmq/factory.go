package rabbitmq

import (
	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/common/factory"
)

// GetFactory returns the factory for RabbitMQ brokers
func GetFactory() brokers.BrokerFactory {
	return factory.NewBrokerFactory[*Config](
		"rabbitmq",
		func(config *Config) (brokers.Broker, error) {
			return NewBroker(config)
		},
	)
}
