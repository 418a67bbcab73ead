package aws

import (
	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/common/factory"
)

// GetFactory returns the factory for SQS/SNS brokers
func GetFactory() brokers.BrokerFactory {
	return factory.NewBrokerFactory[*Config](
		"aws",
		func(config *Config) (brokers.Broker, error) {
			return NewBroker(config)
		},
	)
}
