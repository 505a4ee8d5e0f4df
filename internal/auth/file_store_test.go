package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hitoshi/switchtrack/internal/model"
)

func testBundle() *CredentialBundle {
	return &CredentialBundle{
		SessionToken: "session-token-value",
		AccessToken: &AccessToken{
			TokenType: "Bearer",
			Token:     "access-token-value",
		},
		ExpiresAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileCredentialStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "tokens.json")
	store := NewFileCredentialStore(path)

	if err := store.Save(testBundle()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected bundle, got nil")
	}
	if loaded.SessionToken != "session-token-value" {
		t.Errorf("SessionToken = %q, want %q", loaded.SessionToken, "session-token-value")
	}
	if loaded.AccessToken == nil || loaded.AccessToken.Token != "access-token-value" {
		t.Errorf("AccessToken = %+v, want access-token-value", loaded.AccessToken)
	}
	if !loaded.ExpiresAt.Equal(testBundle().ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", loaded.ExpiresAt, testBundle().ExpiresAt)
	}
}

func TestFileCredentialStore_LoadMissingFileReturnsNil(t *testing.T) {
	store := NewFileCredentialStore(filepath.Join(t.TempDir(), "tokens.json"))

	bundle, err := store.Load()
	if err != nil {
		t.Fatalf("missing file should not be an error, got %v", err)
	}
	if bundle != nil {
		t.Errorf("expected nil bundle, got %+v", bundle)
	}
}

func TestFileCredentialStore_LoadCorruptFileReturnsConfigurationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	store := NewFileCredentialStore(path)

	bundle, err := store.Load()
	if bundle != nil {
		t.Errorf("corrupt file should not yield a bundle, got %+v", bundle)
	}
	if !model.HasCode(err, model.ErrCodeConfigurationError) {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}
}

func TestFileCredentialStore_SaveWritesWithRestrictedPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := NewFileCredentialStore(path)

	if err := store.Save(testBundle()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file permissions = %o, want 600", perm)
	}
}

func TestFileCredentialStore_SaveRejectsBundleWithoutSession(t *testing.T) {
	store := NewFileCredentialStore(filepath.Join(t.TempDir(), "tokens.json"))

	if err := store.Save(&CredentialBundle{}); err == nil {
		t.Error("saving a bundle without a session token should fail")
	}
}

func TestFileCredentialStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := NewFileCredentialStore(path)

	if err := store.Save(testBundle()); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("token file should be removed")
	}

	// 2回目のClearもエラーにならない
	if err := store.Clear(); err != nil {
		t.Errorf("Clear on missing file should not fail: %v", err)
	}
}

func TestCredentialBundle_AccessValid(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	margin := 5 * time.Minute

	tests := []struct {
		name   string
		bundle *CredentialBundle
		want   bool
	}{
		{
			name:   "nil bundle",
			bundle: nil,
			want:   false,
		},
		{
			name:   "no access token",
			bundle: &CredentialBundle{SessionToken: "s"},
			want:   false,
		},
		{
			name: "expires well in the future",
			bundle: &CredentialBundle{
				SessionToken: "s",
				AccessToken:  &AccessToken{TokenType: "Bearer", Token: "a"},
				ExpiresAt:    now.Add(2 * time.Hour),
			},
			want: true,
		},
		{
			name: "inside the refresh margin",
			bundle: &CredentialBundle{
				SessionToken: "s",
				AccessToken:  &AccessToken{TokenType: "Bearer", Token: "a"},
				ExpiresAt:    now.Add(3 * time.Minute),
			},
			want: false,
		},
		{
			name: "already expired",
			bundle: &CredentialBundle{
				SessionToken: "s",
				AccessToken:  &AccessToken{TokenType: "Bearer", Token: "a"},
				ExpiresAt:    now.Add(-time.Hour),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bundle.AccessValid(now, margin); got != tt.want {
				t.Errorf("AccessValid = %v, want %v", got, tt.want)
			}
		})
	}
}
