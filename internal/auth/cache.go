package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CachedCredentials represents credentials stored on disk
type CachedCredentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	SavedAt      time.Time `json:"saved_at"`
}

// IsValid checks if cached credentials are still valid
func (c *CachedCredentials) IsValid() bool {
	// Consider expired if less than 5 minutes remaining
	return time.Until(c.ExpiresAt) > 5*time.Minute
}

// CredentialsCache manages persistent credential storage
type CredentialsCache struct {
	path string
}

// NewCredentialsCache creates a credentials cache at path. An empty path uses
// the default location under the user's data directory.
func NewCredentialsCache(path string) (*CredentialsCache, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".local", "share", "skoda-watch", "credentials.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create credentials directory: %w", err)
	}

	return &CredentialsCache{path: path}, nil
}

// Load reads cached credentials from disk
func (c *CredentialsCache) Load() (*CachedCredentials, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No cached credentials
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var creds CachedCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return &creds, nil
}

// Save writes credentials to disk
func (c *CredentialsCache) Save(creds *CachedCredentials) error {
	cached := *creds
	cached.SavedAt = time.Now()

	data, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	// Write with restricted permissions (0600 = owner read/write only)
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}

	return nil
}

// Delete removes cached credentials
func (c *CredentialsCache) Delete() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// Path returns the path to the credentials file
func (c *CredentialsCache) Path() string {
	return c.path
}

// Source exposes the cache as a bearer-token source for API clients. The
// token is re-read on every request so an external login flow can rotate the
// file while a watch is running.
type Source struct {
	cache *CredentialsCache
}

// NewSource creates a token source backed by cache.
func NewSource(cache *CredentialsCache) *Source {
	return &Source{cache: cache}
}

// AccessToken returns the cached access token, failing when no valid token
// is available.
func (s *Source) AccessToken(ctx context.Context) (string, error) {
	creds, err := s.cache.Load()
	if err != nil {
		return "", err
	}
	if creds == nil {
		return "", fmt.Errorf("no cached credentials at %s, run a login first", s.cache.Path())
	}
	if !creds.IsValid() {
		return "", fmt.Errorf("cached credentials expired at %s, run a login first", creds.ExpiresAt.Format(time.RFC3339))
	}
	return creds.AccessToken, nil
}
