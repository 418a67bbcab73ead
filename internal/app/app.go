package app

import (
	"context"

	"scheduler-webhook/internal/bodyparser"
	"scheduler-webhook/internal/brokers"
	"scheduler-webhook/internal/brokers/memory"
	"scheduler-webhook/internal/circuitbreaker"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/config"
	"scheduler-webhook/internal/credentials"
	"scheduler-webhook/internal/jobspec"
	"scheduler-webhook/internal/locks"
	"scheduler-webhook/internal/reconciler"
	"scheduler-webhook/internal/redis"
	"scheduler-webhook/internal/routing"
	"scheduler-webhook/internal/scheduler"
	"scheduler-webhook/internal/scheduler/gcp"
	"scheduler-webhook/internal/storage"
	"scheduler-webhook/internal/triggers"
	"scheduler-webhook/internal/triggers/manager"
)

// App holds all the application dependencies
type App struct {
	Config          *config.Config
	Storage         storage.Storage
	RedisClient     *redis.Client
	Locks           locks.Manager
	Credentials     credentials.Chain
	CredentialStore *credentials.StoreResolver
	Schedulers      *scheduler.CachingProvider
	Broker          brokers.Broker
	Emitter         triggers.Emitter
	Activations     *memory.Emitter
	Routes          *routing.Table
	Decoder         *bodyparser.Decoder
	TriggerManager  *manager.Manager
	Logger          logging.Logger
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	// Initialize components in order of dependency
	if err := app.initializeStorage(); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		// Redis is optional, just log the error
		app.Logger.Warn("Redis initialization failed, continuing without Redis", logging.Err(err))
	}
	if err := app.initializeLocks(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeCredentials(); err != nil {
		app.Cleanup()
		return nil, err
	}
	app.initializeSchedulers()

	if err := app.initializeEmitter(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.initializeTriggers()
	return app, nil
}

func (app *App) initializeSchedulers() {
	breakerConfig := circuitbreaker.SchedulerConfig
	breakerConfig.Ignore = scheduler.IgnoreNotFound
	breakers := circuitbreaker.NewGoBreakerManager(breakerConfig, app.Logger)
	factory := gcp.Factory(gcp.Config{Location: app.Config.SchedulerLocation})
	app.Schedulers = scheduler.NewCachingProvider(factory, breakers, app.Logger)

	location := app.Config.SchedulerLocation
	if location == "" {
		location = "discovered per project"
	}
	app.Logger.Info("Scheduler: Cloud Scheduler",
		logging.Field{Key: "location", Value: location},
		logging.Field{Key: "time_zone", Value: app.Config.SchedulerTimeZone},
	)
}

func (app *App) initializeTriggers() {
	app.Routes = routing.NewTable(app.Logger)
	app.Decoder = bodyparser.NewDecoder(app.Config.MaxBodyBytes())

	deps := reconciler.Deps{
		Credentials: app.Credentials,
		Routes:      app.Routes,
		Schedulers:  app.Schedulers,
		Emitter:     app.Emitter,
		Locks:       app.Locks,
		Logger:      logging.GetGlobalLogger(),
		Target: jobspec.Target{
			Location: app.Config.SchedulerLocation,
			BaseURL:  app.Config.PublicBaseURL + app.Config.HTTPNodeRoot,
			TimeZone: app.Config.SchedulerTimeZone,
		},
	}
	app.TriggerManager = manager.NewManager(app.Storage, deps, app.Decoder)
}

// LoadTriggers deploys every stored trigger
func (app *App) LoadTriggers(ctx context.Context) error {
	_, err := app.TriggerManager.LoadAll(ctx)
	return err
}

// Shutdown stops every trigger without deleting remote jobs
func (app *App) Shutdown(ctx context.Context) {
	if app.TriggerManager != nil {
		app.TriggerManager.Shutdown(ctx)
	}
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Broker != nil {
		if err := app.Broker.Close(); err != nil {
			app.Logger.Warn("Error closing broker", logging.Err(err))
		}
	}
	if app.Locks != nil {
		app.Locks.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
	if app.Storage != nil {
		app.Storage.Close()
	}
}
