// Package storage holds the client's durable state: the bearer token
// persisted under the auth_token key, and the HTTP client used to reach
// the content API.
package storage

import (
	"encoding/json"
	"os"
	"sync"
)

// TokenKey is the durable key holding the bearer token.
const TokenKey = "auth_token"

// TokenStore is a small JSON key-value file holding the bearer token.
// With an empty path it lives only in memory.
type TokenStore struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// NewTokenStore opens the store at path, loading any existing values.
func NewTokenStore(path string) (*TokenStore, error) {
	ts := &TokenStore{path: path, values: make(map[string]string)}
	if err := ts.load(); err != nil {
		return nil, err
	}
	return ts, nil
}

// NewMemoryTokenStore returns a store that is never written to disk.
func NewMemoryTokenStore() *TokenStore {
	return &TokenStore{values: make(map[string]string)}
}

func (ts *TokenStore) load() error {
	if ts.path == "" {
		return nil
	}
	f, err := os.Open(ts.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(&ts.values)
}

// save must be called with mu held.
func (ts *TokenStore) save() error {
	if ts.path == "" {
		return nil
	}
	f, err := os.OpenFile(ts.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(ts.values)
}

// SetToken stores and persists the bearer token.
func (ts *TokenStore) SetToken(token string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.values[TokenKey] = token
	return ts.save()
}

// Token returns the current token, or "" if none.
func (ts *TokenStore) Token() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.values[TokenKey]
}

// ClearToken removes the token. The in-memory value is always cleared even
// if persisting the removal fails.
func (ts *TokenStore) ClearToken() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.values, TokenKey)
	return ts.save()
}

// IsAuthenticated reports whether a non-empty token is present.
func (ts *TokenStore) IsAuthenticated() bool {
	return ts.Token() != ""
}
