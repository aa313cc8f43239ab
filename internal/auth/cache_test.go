package auth

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCredentialsCache_SaveAndLoad(t *testing.T) {
	// Create temporary cache
	tmpDir := t.TempDir()
	cache := &CredentialsCache{
		path: filepath.Join(tmpDir, "creds.json"),
	}

	creds := &CachedCredentials{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}

	if err := cache.Save(creds); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify file was created with correct permissions
	info, err := os.Stat(cache.Path())
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected permissions 0600, got %v", info.Mode().Perm())
	}

	loaded, err := cache.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected credentials, got nil")
	}
	if loaded.AccessToken != "test-access-token" {
		t.Errorf("Expected access token, got %s", loaded.AccessToken)
	}
	if loaded.SavedAt.IsZero() {
		t.Error("Expected SavedAt to be set on save")
	}
}

func TestCredentialsCache_LoadMissing(t *testing.T) {
	cache := &CredentialsCache{
		path: filepath.Join(t.TempDir(), "missing.json"),
	}

	loaded, err := cache.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != nil {
		t.Errorf("Expected nil for missing file, got %+v", loaded)
	}
}

func TestCredentialsCache_Delete(t *testing.T) {
	cache := &CredentialsCache{
		path: filepath.Join(t.TempDir(), "creds.json"),
	}

	creds := &CachedCredentials{
		AccessToken: "token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	if err := cache.Save(creds); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := cache.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := os.Stat(cache.Path()); !os.IsNotExist(err) {
		t.Error("Expected file to be deleted")
	}

	// Deleting again is not an error
	if err := cache.Delete(); err != nil {
		t.Errorf("Second delete failed: %v", err)
	}
}

func TestCachedCredentials_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		creds CachedCredentials
		want  bool
	}{
		{
			name:  "valid for 24 hours",
			creds: CachedCredentials{ExpiresAt: time.Now().Add(24 * time.Hour)},
			want:  true,
		},
		{
			name:  "expired",
			creds: CachedCredentials{ExpiresAt: time.Now().Add(-time.Hour)},
			want:  false,
		},
		{
			name:  "expiring within grace period",
			creds: CachedCredentials{ExpiresAt: time.Now().Add(2 * time.Minute)},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSource_AccessToken(t *testing.T) {
	cache := &CredentialsCache{
		path: filepath.Join(t.TempDir(), "creds.json"),
	}
	source := NewSource(cache)

	// No cached credentials yet
	if _, err := source.AccessToken(context.Background()); err == nil {
		t.Error("Expected error with no cached credentials")
	}

	creds := &CachedCredentials{
		AccessToken: "live-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	if err := cache.Save(creds); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	token, err := source.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if token != "live-token" {
		t.Errorf("Expected live-token, got %s", token)
	}

	// Expired credentials are rejected
	creds.ExpiresAt = time.Now().Add(-time.Hour)
	if err := cache.Save(creds); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := source.AccessToken(context.Background()); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("Expected expired error, got %v", err)
	}
}
