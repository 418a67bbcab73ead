// Package credentials resolves an opaque credentials reference to the
// service account a scheduler client is built from.
package credentials

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/crypto"
)

// Credentials is a parsed service account key.
type Credentials struct {
	Ref         string `json:"-"`
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	// JSON is the raw key handed to the scheduler client
	JSON []byte `json:"-"`
}

// Parse decodes a service account key. The key must name its project.
func Parse(ref string, data []byte) (*Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, errors.CredentialsError(ref, err)
	}
	if creds.ProjectID == "" {
		return nil, errors.CredentialsError(ref, errors.ValidationError("project_id is missing"))
	}
	creds.Ref = ref
	creds.JSON = append([]byte(nil), data...)
	return &creds, nil
}

// Resolver turns a reference into credentials. Every failure is a
// credentials_unavailable error.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*Credentials, error)
}

// StaticResolver serves credentials from memory.
type StaticResolver struct {
	mu    sync.RWMutex
	creds map[string]*Credentials
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{creds: make(map[string]*Credentials)}
}

// Put stores creds under ref.
func (s *StaticResolver) Put(ref string, creds *Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *creds
	c.Ref = ref
	s.creds[ref] = &c
}

func (s *StaticResolver) Resolve(_ context.Context, ref string) (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[ref]
	if !ok {
		return nil, errors.CredentialsError(ref, errors.NotFoundError("credentials"))
	}
	return c, nil
}

// DirResolver reads {ref}.json from a directory.
type DirResolver struct {
	Dir string
}

func (d DirResolver) Resolve(_ context.Context, ref string) (*Credentials, error) {
	if d.Dir == "" {
		return nil, errors.CredentialsError(ref, errors.ConfigError("credentials directory is not configured"))
	}
	if ref == "" || strings.ContainsAny(ref, `/\`) || ref == "." || ref == ".." {
		return nil, errors.CredentialsError(ref, errors.ValidationError("invalid credentials reference"))
	}
	data, err := os.ReadFile(filepath.Join(d.Dir, ref+".json"))
	if err != nil {
		return nil, errors.CredentialsError(ref, err)
	}
	return Parse(ref, data)
}

// Store is the persistence side of StoreResolver. GetCredential returns the
// encrypted payload stored under ref.
type Store interface {
	GetCredential(ctx context.Context, ref string) (string, error)
	SaveCredential(ctx context.Context, ref, encrypted string) error
}

// StoreResolver keeps keys encrypted at rest.
type StoreResolver struct {
	store     Store
	encryptor *crypto.ConfigEncryptor
}

func NewStoreResolver(store Store, encryptor *crypto.ConfigEncryptor) *StoreResolver {
	return &StoreResolver{store: store, encryptor: encryptor}
}

// Save validates raw as a service account key and stores it encrypted.
func (s *StoreResolver) Save(ctx context.Context, ref string, raw []byte) (*Credentials, error) {
	if ref == "" {
		return nil, errors.ValidationError("credentials reference is required")
	}
	creds, err := Parse(ref, raw)
	if err != nil {
		return nil, err
	}
	encrypted, err := s.encryptor.Encrypt(string(raw))
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveCredential(ctx, ref, encrypted); err != nil {
		return nil, err
	}
	return creds, nil
}

func (s *StoreResolver) Resolve(ctx context.Context, ref string) (*Credentials, error) {
	encrypted, err := s.store.GetCredential(ctx, ref)
	if err != nil {
		return nil, errors.CredentialsError(ref, err)
	}
	plaintext, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		return nil, errors.CredentialsError(ref, err)
	}
	return Parse(ref, []byte(plaintext))
}

// Chain tries each resolver in order and returns the first success.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, ref string) (*Credentials, error) {
	if ref == "" {
		return nil, errors.CredentialsError(ref, errors.ValidationError("credentials reference is empty"))
	}
	var last error
	for _, r := range c {
		creds, err := r.Resolve(ctx, ref)
		if err == nil {
			return creds, nil
		}
		last = err
	}
	if last == nil {
		last = errors.CredentialsError(ref, errors.ConfigError("no credentials resolver configured"))
	}
	return nil, last
}
