package redis

import (
	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/common/factory"
)

// GetFactory returns the factory for Redis Streams brokers
func GetFactory() brokers.BrokerFactory {
	return factory.NewBrokerFactory[*Config](
		"redis",
		func(config *Config) (brokers.Broker, error) {
			return NewBroker(config)
		},
	)
}
