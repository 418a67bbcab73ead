package app

import (
	"fmt"

	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/credentials"
	"scheduler-webhook/internal/crypto"
	"scheduler-webhook/internal/storage"
	_ "scheduler-webhook/internal/storage/postgres"
	_ "scheduler-webhook/internal/storage/sqlite"
)

func (app *App) initializeStorage() error {
	switch app.Config.DatabaseType {
	case "postgres":
		app.Logger.Info("Database: PostgreSQL",
			logging.Field{Key: "host", Value: app.Config.PostgresHost},
			logging.Field{Key: "port", Value: app.Config.PostgresPort},
			logging.Field{Key: "database", Value: app.Config.PostgresDB},
		)
	default:
		app.Logger.Info("Database: SQLite", logging.Field{Key: "path", Value: app.Config.DatabasePath})
	}

	store, err := storage.NewStorage(app.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.Storage = store
	return nil
}

// initializeCredentials builds the resolver chain. Stored keys are only
// available with an encryption key; CREDENTIALS_DIR is always consulted.
func (app *App) initializeCredentials() error {
	var chain credentials.Chain

	if app.Config.EncryptionKey != "" {
		encryptor, err := crypto.NewConfigEncryptor(app.Config.EncryptionKey)
		if err != nil {
			return err
		}
		app.CredentialStore = credentials.NewStoreResolver(app.Storage, encryptor)
		chain = append(chain, app.CredentialStore)
	} else {
		app.Logger.Warn("CONFIG_ENCRYPTION_KEY is not set, credential upload is disabled")
	}

	if app.Config.CredentialsDir != "" {
		chain = append(chain, credentials.DirResolver{Dir: app.Config.CredentialsDir})
		app.Logger.Info("Credentials: Directory", logging.Field{Key: "dir", Value: app.Config.CredentialsDir})
	}

	app.Credentials = chain
	return nil
}
