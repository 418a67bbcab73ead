package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/storage"
	"scheduler-webhook/internal/storage/postgres"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  postgres.Config
		wantErr bool
	}{
		{"valid", postgres.Config{Host: "db", Database: "app", Username: "u"}, false},
		{"missing host", postgres.Config{Database: "app", Username: "u"}, true},
		{"missing database", postgres.Config{Host: "db", Username: "u"}, true},
		{"missing user", postgres.Config{Host: "db", Database: "app"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			err := cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 5432, cfg.Port)
			assert.Equal(t, "prefer", cfg.SSLMode)
		})
	}
}

func TestConfig_ConnectionStringRoundTrip(t *testing.T) {
	cfg := &postgres.Config{
		Host:     "db.internal",
		Port:     6543,
		Database: "scheduler",
		Username: "svc",
		Password: "p@ss word",
		SSLMode:  "require",
	}

	parsed, err := postgres.NewConfigFromURL(cfg.GetConnectionString())
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}

func TestNewConfigFromURL_Defaults(t *testing.T) {
	cfg, err := postgres.NewConfigFromURL("postgres://admin@localhost/app")
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "app", cfg.Database)
	assert.Equal(t, "prefer", cfg.SSLMode)
}

func TestFactory_Registered(t *testing.T) {
	assert.Contains(t, storage.GetAvailableTypes(), "postgres")

	_, err := (&postgres.Factory{}).Create(storage.GenericConfig{"database": "x"})
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}
