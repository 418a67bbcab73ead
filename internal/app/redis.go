package app

import (
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/locks"
	"scheduler-webhook/internal/redis"
)

func (app *App) initializeRedis() error {
	if !app.Config.RedisEnabled() {
		app.Logger.Info("Redis: Not configured (cross-instance reconciliation locks disabled)")
		return nil
	}

	redisClient, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDBNumber(),
		PoolSize: app.Config.RedisPoolSizeNumber(),
	})
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected", logging.Field{Key: "address", Value: app.Config.RedisAddress})
	return nil
}

func (app *App) initializeLocks() error {
	manager, err := locks.NewManager(app.RedisClient)
	if err != nil {
		return err
	}
	app.Locks = manager
	if app.RedisClient != nil {
		app.Logger.Info("Distributed Locks: Enabled")
	}
	return nil
}
