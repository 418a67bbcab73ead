// Package base provides the pieces shared by broker implementations
package base

import (
	"fmt"

	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
)

// BaseBroker holds the name, configuration and logger of a broker
type BaseBroker struct {
	name   string
	logger logging.Logger
	config brokers.BrokerConfig
}

// NewBaseBroker validates config and sets up a logger tagged with the
// broker name and its credential-free connection string.
func NewBaseBroker(name string, config brokers.BrokerConfig) (*BaseBroker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid %s config: %v", name, err))
	}

	logger := logging.GetGlobalLogger().WithFields(
		logging.Field{Key: "broker", Value: name},
		logging.Field{Key: "connection", Value: config.GetConnectionString()},
	)

	return &BaseBroker{
		name:   name,
		config: config,
		logger: logger,
	}, nil
}

// Name returns the broker type name.
func (b *BaseBroker) Name() string {
	return b.name
}

func (b *BaseBroker) GetLogger() logging.Logger {
	return b.logger
}

// SetLogger replaces the logger, mostly for tests
func (b *BaseBroker) SetLogger(logger logging.Logger) {
	b.logger = logger
}

func (b *BaseBroker) GetConfig() brokers.BrokerConfig {
	return b.config
}

// Destination returns the message topic, or fallback when the message has none
func Destination(message *brokers.Message, fallback string) string {
	if message.Topic != "" {
		return message.Topic
	}
	return fallback
}

// StandardHealthCheck reports a connection error when client is nil
func StandardHealthCheck(client interface{}, brokerType string) error {
	if client == nil {
		return errors.ConnectionError(brokerType+" client not initialized", nil)
	}
	return nil
}
