package app

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/config"
	"scheduler-webhook/internal/server"
)

const shutdownTimeout = 30 * time.Second

// Run is the main entry point for the application
func Run() error {
	var envFile string
	flag.StringVar(&envFile, "env-file", ".env", "Environment file loaded before configuration")
	flag.Parse()

	// Load environment variables
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	// Initialize logging
	if err := logging.InitGlobalLogger(); err != nil {
		return err
	}
	defer logging.MustSync()

	logging.Info("Starting scheduler webhook",
		logging.Field{Key: "cpus", Value: runtime.NumCPU()},
		logging.Field{Key: "version", Value: "1.0.0"},
	)

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	// Initialize application
	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	router := mux.NewRouter()
	app.SetupRoutes(router, app.NewHandlers())

	srv := server.New(router, cfg.Port, cfg.TLSCertFile, cfg.TLSKeyFile)
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		return err
	}
	logging.Info("Server listening",
		logging.Field{Key: "addr", Value: srv.Addr()},
		logging.Field{Key: "tls", Value: cfg.TLSCertFile != ""},
		logging.Field{Key: "http_node_root", Value: cfg.HTTPNodeRoot},
	)

	// Triggers are deployed once the server accepts requests, so a remote
	// job created at boot never targets a closed port.
	if err := app.LoadTriggers(context.Background()); err != nil {
		logging.Error("Failed to load triggers", err)
	}

	// Wait for interrupt signal or a serve failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	var serveErr error
	select {
	case <-quit:
	case serveErr = <-srv.Errors():
		if serveErr != nil {
			logging.Error("Server stopped unexpectedly", serveErr)
		}
	}

	logging.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting requests before triggers release their routes
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
	}
	app.Shutdown(ctx)

	logging.Info("Server exited")
	return serveErr
}
