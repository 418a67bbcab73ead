package credentials

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/crypto"
)

const serviceAccount = `{"type":"service_account","project_id":"demo-project","client_email":"sa@demo-project.iam.gserviceaccount.com"}`

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) GetCredential(_ context.Context, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[ref]
	if !ok {
		return "", errors.NotFoundError("credential")
	}
	return v, nil
}

func (m *memStore) SaveCredential(_ context.Context, ref, encrypted string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[ref] = encrypted
	return nil
}

func TestParse(t *testing.T) {
	creds, err := Parse("sa", []byte(serviceAccount))
	require.NoError(t, err)
	assert.Equal(t, "sa", creds.Ref)
	assert.Equal(t, "demo-project", creds.ProjectID)
	assert.Equal(t, "sa@demo-project.iam.gserviceaccount.com", creds.ClientEmail)
	assert.JSONEq(t, serviceAccount, string(creds.JSON))

	_, err = Parse("bad", []byte("{"))
	assert.True(t, errors.IsType(err, errors.ErrTypeCredentials))

	_, err = Parse("noproject", []byte(`{"type":"service_account"}`))
	assert.True(t, errors.IsType(err, errors.ErrTypeCredentials))
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver()
	r.Put("a", &Credentials{ProjectID: "p"})

	creds, err := r.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", creds.Ref)

	_, err = r.Resolve(context.Background(), "missing")
	assert.True(t, errors.IsType(err, errors.ErrTypeCredentials))
}

func TestDirResolver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prod.json"), []byte(serviceAccount), 0o600))

	r := DirResolver{Dir: dir}
	creds, err := r.Resolve(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, "demo-project", creds.ProjectID)

	for _, ref := range []string{"missing", "../prod", "", ".."} {
		_, err := r.Resolve(context.Background(), ref)
		assert.True(t, errors.IsType(err, errors.ErrTypeCredentials), ref)
	}

	_, err = DirResolver{}.Resolve(context.Background(), "prod")
	assert.True(t, errors.IsType(err, errors.ErrTypeCredentials))
}

func TestStoreResolver(t *testing.T) {
	enc, err := crypto.NewConfigEncryptor("k")
	require.NoError(t, err)
	store := &memStore{data: map[string]string{}}
	r := NewStoreResolver(store, enc)
	ctx := context.Background()

	saved, err := r.Save(ctx, "prod", []byte(serviceAccount))
	require.NoError(t, err)
	assert.Equal(t, "demo-project", saved.ProjectID)
	assert.NotContains(t, store.data["prod"], "demo-project")

	creds, err := r.Resolve(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, "demo-project", creds.ProjectID)

	_, err = r.Resolve(ctx, "missing")
	assert.True(t, errors.IsType(err, errors.ErrTypeCredentials))

	_, err = r.Save(ctx, "bad", []byte("not json"))
	assert.Error(t, err)
	_, ok := store.data["bad"]
	assert.False(t, ok)

	_, err = r.Save(ctx, "", []byte(serviceAccount))
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestChain(t *testing.T) {
	first := NewStaticResolver()
	second := NewStaticResolver()
	second.Put("b", &Credentials{ProjectID: "p2"})

	chain := Chain{first, second}
	creds, err := chain.Resolve(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "p2", creds.ProjectID)

	_, err = chain.Resolve(context.Background(), "nope")
	assert.True(t, errors.IsType(err, errors.ErrTypeCredentials))

	_, err = chain.Resolve(context.Background(), "")
	assert.True(t, errors.IsType(err, errors.ErrTypeCredentials))

	_, err = Chain{}.Resolve(context.Background(), "x")
	assert.True(t, errors.IsType(err, errors.ErrTypeCredentials))
}
