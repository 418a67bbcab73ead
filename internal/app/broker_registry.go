package app

import (
	"fmt"

	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/brokers/aws"
	"scheduler-webhook/internal/brokers/gcp"
	"scheduler-webhook/internal/brokers/kafka"
	"scheduler-webhook/internal/brokers/memory"
	"scheduler-webhook/internal/brokers/rabbitmq"
	redisbroker "scheduler-webhook/internal/brokers/redis"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/config"
)

// RegisterBrokerFactories registers every broker factory with registry
func RegisterBrokerFactories(registry *brokers.Registry) {
	registry.Register(config.EmitterRabbitMQ, rabbitmq.GetFactory())
	registry.Register(config.EmitterKafka, kafka.GetFactory())
	registry.Register(config.EmitterRedis, redisbroker.GetFactory())
	registry.Register(config.EmitterAWS, aws.GetFactory())
	registry.Register(config.EmitterGCP, gcp.GetFactory())
}

// brokerConfig maps EMITTER_TYPE and its settings to a broker config
func brokerConfig(cfg *config.Config) (brokers.BrokerConfig, error) {
	switch cfg.EmitterType {
	case config.EmitterRedis:
		return &redisbroker.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDBNumber(),
			PoolSize: cfg.RedisPoolSizeNumber(),
			Stream:   cfg.EmitterTopic,
		}, nil
	case config.EmitterGCP:
		return &gcp.Config{
			ProjectID: cfg.GCPProjectID,
			TopicID:   cfg.EmitterTopic,
		}, nil
	case config.EmitterRabbitMQ:
		return &rabbitmq.Config{
			URL:   cfg.RabbitMQURL,
			Queue: cfg.EmitterTopic,
		}, nil
	case config.EmitterAWS:
		return &aws.Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			QueueURL:        cfg.AWSQueueURL,
			TopicArn:        cfg.AWSTopicARN,
		}, nil
	case config.EmitterKafka:
		return &kafka.Config{
			Brokers: cfg.KafkaBrokerList(),
			Topic:   cfg.EmitterTopic,
		}, nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported emitter type: %s", cfg.EmitterType))
	}
}

// initializeEmitter always keeps recent activations in memory. A configured
// broker receives every activation as well.
func (app *App) initializeEmitter() error {
	app.Activations = memory.New(memory.DefaultCapacity)

	if app.Config.EmitterType == "" || app.Config.EmitterType == config.EmitterMemory {
		app.Emitter = app.Activations
		app.Logger.Info("Activation emitter: memory")
		return nil
	}

	brokerCfg, err := brokerConfig(app.Config)
	if err != nil {
		return err
	}

	registry := brokers.NewRegistry()
	RegisterBrokerFactories(registry)

	broker, err := registry.Create(app.Config.EmitterType, brokerCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s emitter: %w", app.Config.EmitterType, err)
	}

	app.Broker = broker
	app.Emitter = brokers.Tee{app.Activations, brokers.NewEmitter(broker, "", app.Logger)}
	app.Logger.Info("Activation emitter: broker",
		logging.Field{Key: "type", Value: app.Config.EmitterType},
		logging.Field{Key: "destination", Value: brokerCfg.GetConnectionString()},
	)
	return nil
}
