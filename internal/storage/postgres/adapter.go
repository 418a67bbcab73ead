// Package postgres is the shared storage backend, driven through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/storage"
)

type Adapter struct {
	*storage.SQLStore
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", config.GetConnectionString())
	if err != nil {
		return nil, errors.ConnectionError("failed to open database", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.ConnectionError("failed to ping database", err)
	}

	adapter := &Adapter{
		SQLStore: storage.NewSQLStore(db, storage.Dollar),
		config:   config,
	}

	if err := adapter.Migrate(ctx, migrations); err != nil {
		db.Close()
		return nil, err
	}

	return adapter, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS triggers (
		id TEXT PRIMARY KEY,
		config TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		ref TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}
