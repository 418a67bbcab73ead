// Package sqlite is the embedded storage backend
package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

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

	db, err := sql.Open("sqlite3", config.GetConnectionString())
	if err != nil {
		return nil, errors.ConnectionError("failed to open database", err)
	}
	// SQLite serialises writers; one connection keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.ConnectionError("failed to ping database", err)
	}

	adapter := &Adapter{
		SQLStore: storage.NewSQLStore(db, storage.Question),
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
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		ref TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	cfg, err := configFrom(config)
	if err != nil {
		return nil, err
	}
	return NewAdapter(cfg)
}

func (f *Factory) GetType() string {
	return "sqlite"
}

func init() {
	storage.Register("sqlite", &Factory{})
}
