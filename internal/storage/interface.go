// Package storage persists trigger configurations and encrypted scheduler
// credentials.
//
// Two backends are registered through the same factory registry: SQLite
// (github.com/mattn/go-sqlite3) for single-instance deployments and
// PostgreSQL (through the pgx database/sql driver) for shared ones. Both run
// the same statements through SQLStore; only the schema and the placeholder
// style differ.
//
// Example usage:
//
//	store, err := storage.NewStorage(cfg)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	if err := store.SaveTrigger(ctx, triggerConfig); err != nil {
//		return err
//	}
package storage

import (
	"context"
	"strconv"
	"time"

	"scheduler-webhook/internal/triggers"
)

// Storage is the persistence surface of the host runtime
type Storage interface {
	Close() error
	Health(ctx context.Context) error

	// Trigger operations
	SaveTrigger(ctx context.Context, cfg triggers.Config) error
	GetTrigger(ctx context.Context, id string) (*TriggerRecord, error)
	ListTriggers(ctx context.Context) ([]*TriggerRecord, error)
	DeleteTrigger(ctx context.Context, id string) error

	// Credential operations. Payloads are stored as given; callers encrypt.
	GetCredential(ctx context.Context, ref string) (string, error)
	SaveCredential(ctx context.Context, ref, payload string) error
	DeleteCredential(ctx context.Context, ref string) error
}

// TriggerRecord is a persisted trigger configuration
type TriggerRecord struct {
	Config    triggers.Config `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type StorageConfig interface {
	Validate() error
	GetType() string
	GetConnectionString() string
}

type StorageFactory interface {
	Create(config StorageConfig) (Storage, error)
	GetType() string
}

// GenericConfig is a simple map-based implementation of StorageConfig
type GenericConfig map[string]interface{}

func (gc GenericConfig) Validate() error {
	return nil
}

func (gc GenericConfig) GetType() string {
	if t, ok := gc["type"].(string); ok {
		return t
	}
	return "unknown"
}

func (gc GenericConfig) GetConnectionString() string {
	if cs, ok := gc["connection_string"].(string); ok {
		return cs
	}
	return ""
}

// String returns the string value at key, or ""
func (gc GenericConfig) String(key string) string {
	s, _ := gc[key].(string)
	return s
}

// Int returns the int value at key, or 0
func (gc GenericConfig) Int(key string) int {
	switch v := gc[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
