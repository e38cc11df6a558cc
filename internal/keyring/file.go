package keyring

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is the dev-only keyring.Store implementation: a single
// JSON file under the user cache directory, permissioned 0600.
// Anyone with read access to that file reads credentials in the
// clear; it exists so the core is runnable without a host keychain
// binding, not as a production secret store.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore backed by path. The parent
// directory is created on the first write, not here.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func credKey(service, account string) string {
	return service + "/" + account
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	creds := map[string]string{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &creds); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.path, err)
		}
	}
	return creds, nil
}

func (f *FileStore) save(creds map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *FileStore) Get(ctx context.Context, service, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return "", err
	}
	secret, ok := creds[credKey(service, account)]
	if !ok {
		return "", newNotFound(service, account)
	}
	return secret, nil
}

func (f *FileStore) Set(ctx context.Context, service, account, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return err
	}
	creds[credKey(service, account)] = secret
	return f.save(creds)
}

func (f *FileStore) Delete(ctx context.Context, service, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return err
	}
	delete(creds, credKey(service, account))
	return f.save(creds)
}
