package app

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"scheduler-webhook/internal/handlers"
	"scheduler-webhook/internal/middleware"
)

// NewHandlers builds the admin API handlers from the app's components
func (app *App) NewHandlers() *handlers.Handlers {
	opts := handlers.Options{
		Clients:     app.Schedulers,
		Activations: app.Activations,
		MaxBodySize: app.Config.MaxBodyBytes(),
		Logger:      app.Logger,
		Checks: map[string]handlers.HealthCheck{
			"storage": app.Storage.Health,
		},
	}
	if app.CredentialStore != nil {
		opts.Credentials = app.CredentialStore
	}
	if app.RedisClient != nil {
		opts.Checks["redis"] = app.RedisClient.Health
	}
	if app.Broker != nil {
		broker := app.Broker
		opts.Checks["emitter"] = func(ctx context.Context) error { return broker.Health(ctx) }
	}
	return handlers.New(app.TriggerManager, opts)
}

// reservedPaths are matched before the trigger table when both share the root
var reservedPaths = []string{"/health", "/trigger", "/api"}

// SetupRoutes configures all HTTP routes for the application. Trigger routes
// live in a table that changes at runtime, so they are served by the table
// under HTTP_NODE_ROOT instead of being registered on router.
func (app *App) SetupRoutes(router *mux.Router, h *handlers.Handlers) {
	router.Use(middleware.RequestID)
	router.Use(middleware.Recover(app.Logger))
	router.Use(middleware.Logging(app.Logger))

	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/trigger/{id}", h.FireTrigger).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()

	// Trigger management
	api.HandleFunc("/triggers", h.GetTriggers).Methods("GET")
	api.HandleFunc("/triggers", h.CreateTrigger).Methods("POST")
	api.HandleFunc("/triggers/{id}", h.GetTrigger).Methods("GET")
	api.HandleFunc("/triggers/{id}", h.UpdateTrigger).Methods("PUT")
	api.HandleFunc("/triggers/{id}", h.DeleteTrigger).Methods("DELETE")
	api.HandleFunc("/triggers/{id}/redeploy", h.RedeployTrigger).Methods("POST")

	// Credentials
	api.HandleFunc("/credentials/{ref}", h.PutCredential).Methods("PUT")

	// Activations
	api.HandleFunc("/activations", h.GetActivations).Methods("GET")

	// Trigger routes, registered last so admin routes win
	var triggerRoutes http.Handler = app.Routes
	root := app.Config.HTTPNodeRoot
	if root != "" {
		triggerRoutes = http.StripPrefix(root, app.Routes)
	} else {
		app.Routes.Reserve(reservedPaths...)
	}
	router.PathPrefix(root + "/").Handler(triggerRoutes)
}
