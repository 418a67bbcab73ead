package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/config"
	"scheduler-webhook/internal/credentials"
	"scheduler-webhook/internal/crypto"
	"scheduler-webhook/internal/storage"
	"scheduler-webhook/internal/storage/sqlite"
	"scheduler-webhook/internal/triggers"
)

func newAdapter(t *testing.T) *sqlite.Adapter {
	t.Helper()
	adapter, err := sqlite.NewAdapter(&sqlite.Config{
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func sampleTrigger(id string) triggers.Config {
	return triggers.Config{
		ID:                    id,
		Name:                  "nightly",
		URLPath:               "/hooks/" + id,
		HTTPMethod:            "post",
		CronExpression:        "0 3 * * *",
		PubliclyAccessibleAck: true,
		CredentialsRef:        "prod",
	}
}

func TestAdapter_TriggerRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newAdapter(t)

	require.NoError(t, store.SaveTrigger(ctx, sampleTrigger("t1")))

	record, err := store.GetTrigger(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, sampleTrigger("t1"), record.Config)
	assert.False(t, record.CreatedAt.IsZero())
	assert.Equal(t, record.CreatedAt, record.UpdatedAt)
}

func TestAdapter_SaveTriggerUpserts(t *testing.T) {
	ctx := context.Background()
	store := newAdapter(t)

	require.NoError(t, store.SaveTrigger(ctx, sampleTrigger("t1")))
	first, err := store.GetTrigger(ctx, "t1")
	require.NoError(t, err)

	edited := sampleTrigger("t1")
	edited.URLPath = "/hooks/renamed"
	require.NoError(t, store.SaveTrigger(ctx, edited))

	record, err := store.GetTrigger(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "/hooks/renamed", record.Config.URLPath)
	assert.Equal(t, first.CreatedAt, record.CreatedAt)
	assert.False(t, record.UpdatedAt.Before(first.UpdatedAt))

	all, err := store.ListTriggers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAdapter_ListAndDeleteTriggers(t *testing.T) {
	ctx := context.Background()
	store := newAdapter(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveTrigger(ctx, sampleTrigger(id)))
	}

	all, err := store.ListTriggers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.NoError(t, store.DeleteTrigger(ctx, "b"))

	_, err = store.GetTrigger(ctx, "b")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	err = store.DeleteTrigger(ctx, "b")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	all, err = store.ListTriggers(ctx)
	require.NoError(t, err)
	ids := []string{all[0].Config.ID, all[1].Config.ID}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)
}

func TestAdapter_SaveTriggerRequiresID(t *testing.T) {
	store := newAdapter(t)
	err := store.SaveTrigger(context.Background(), triggers.Config{})
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestAdapter_Credentials(t *testing.T) {
	ctx := context.Background()
	store := newAdapter(t)

	_, err := store.GetCredential(ctx, "prod")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	require.NoError(t, store.SaveCredential(ctx, "prod", "v1"))
	require.NoError(t, store.SaveCredential(ctx, "prod", "v2"))

	payload, err := store.GetCredential(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, "v2", payload)

	require.NoError(t, store.DeleteCredential(ctx, "prod"))
	assert.True(t, errors.IsType(store.DeleteCredential(ctx, "prod"), errors.ErrTypeNotFound))
}

func TestAdapter_BacksCredentialResolver(t *testing.T) {
	ctx := context.Background()
	store := newAdapter(t)

	enc, err := crypto.NewConfigEncryptor("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	resolver := credentials.NewStoreResolver(store, enc)

	key := []byte(`{"type":"service_account","project_id":"acme","client_email":"svc@acme.iam.gserviceaccount.com"}`)
	_, err = resolver.Save(ctx, "prod", key)
	require.NoError(t, err)

	raw, err := store.GetCredential(ctx, "prod")
	require.NoError(t, err)
	assert.NotContains(t, raw, "acme")

	creds, err := resolver.Resolve(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, "acme", creds.ProjectID)
}

func TestAdapter_Health(t *testing.T) {
	store := newAdapter(t)
	assert.NoError(t, store.Health(context.Background()))
}

func TestAdapter_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	first, err := sqlite.NewAdapter(&sqlite.Config{DatabasePath: path})
	require.NoError(t, err)
	require.NoError(t, first.SaveTrigger(ctx, sampleTrigger("kept")))
	require.NoError(t, first.Close())

	second, err := sqlite.NewAdapter(&sqlite.Config{DatabasePath: path})
	require.NoError(t, err)
	defer second.Close()

	record, err := second.GetTrigger(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "kept", record.Config.ID)
}

func TestConfig_Validate(t *testing.T) {
	err := (&sqlite.Config{}).Validate()
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	cfg := &sqlite.Config{DatabasePath: "data.db"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.GetType())
	assert.Contains(t, cfg.GetConnectionString(), "data.db")
}

func TestNewStorage_FromConfig(t *testing.T) {
	cfg := &config.Config{
		DatabaseType: "sqlite",
		DatabasePath: filepath.Join(t.TempDir(), "factory.db"),
	}

	store, err := storage.NewStorage(cfg)
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Health(context.Background()))
	assert.Contains(t, storage.GetAvailableTypes(), "sqlite")
}

func TestNewStorage_UnsupportedType(t *testing.T) {
	_, err := storage.NewStorage(&config.Config{DatabaseType: "mongo"})
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}
