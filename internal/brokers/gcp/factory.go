package gcp

import (
	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/common/factory"
)

// GetFactory returns the factory for Pub/Sub brokers
func GetFactory() brokers.BrokerFactory {
	return factory.NewBrokerFactory[*Config](
		"gcp",
		func(config *Config) (brokers.Broker, error) {
			return NewBroker(config)
		},
	)
}
