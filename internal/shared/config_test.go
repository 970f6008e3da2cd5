package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./capsule.db" {
			t.Errorf("expected database path ./capsule.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Auth.SignInTimeout.Duration != 2*time.Minute {
			t.Errorf("expected sign-in timeout 2m, got %v", config.Auth.SignInTimeout.Duration)
		}

		if len(config.Credentials.Google.Scopes) != 3 {
			t.Errorf("expected 3 default scopes, got %v", config.Credentials.Google.Scopes)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[auth]
sign_in_timeout = "45s"

[credentials.google]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://127.0.0.1:8080/callback"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}
		if config.Auth.SignInTimeout.Duration != 45*time.Second {
			t.Errorf("expected 45s timeout, got %v", config.Auth.SignInTimeout.Duration)
		}
		if config.Prompts.Model != "gpt-4o-mini" {
			t.Errorf("expected missing prompts section to keep default model, got %q", config.Prompts.Model)
		}
		if err := config.Credentials.Google.Validate(); err != nil {
			t.Errorf("expected valid google credentials, got %v", err)
		}
	})

	t.Run("Invalid Duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[auth]\nexpiry_skew = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for invalid duration")
		}
	})

	t.Run("Environment Overrides", func(t *testing.T) {
		t.Setenv("CAPSULE_GOOGLE_CLIENT_SECRET", "from-env")
		t.Setenv("CAPSULE_PROMPTS_API_KEY", "sk-env")

		config, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("LoadOrDefault() error = %v", err)
		}
		if config.Credentials.Google.ClientSecret != "from-env" {
			t.Errorf("expected client secret from env, got %q", config.Credentials.Google.ClientSecret)
		}
		if config.Prompts.APIKey != "sk-env" {
			t.Errorf("expected api key from env, got %q", config.Prompts.APIKey)
		}
	})

	t.Run("SaveConfig Round Trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Credentials.Google.ClientID = "saved-id"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("SaveConfig() error = %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if loaded.Credentials.Google.ClientID != "saved-id" {
			t.Errorf("expected saved-id, got %q", loaded.Credentials.Google.ClientID)
		}
		if loaded.Auth.ExpirySkew.Duration != 30*time.Second {
			t.Errorf("expected expiry skew to survive round trip, got %v", loaded.Auth.ExpirySkew.Duration)
		}
	})
}

func TestGoogleConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  GoogleConfig
		wantErr error
	}{
		{name: "placeholder client id", config: GoogleConfig{ClientID: "your_google_client_id", RedirectURI: "x"}, wantErr: ErrMissingCredentials},
		{name: "empty client id", config: GoogleConfig{RedirectURI: "x"}, wantErr: ErrMissingCredentials},
		{name: "missing redirect", config: GoogleConfig{ClientID: "id"}, wantErr: ErrInvalidConfig},
		{name: "valid", config: GoogleConfig{ClientID: "id", RedirectURI: "http://127.0.0.1:3000/callback"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolvedCredentialDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	dir, err := AuthConfig{CredentialDir: "~/.capsule/creds"}.ResolvedCredentialDir()
	if err != nil {
		t.Fatalf("ResolvedCredentialDir() error = %v", err)
	}
	if !strings.HasPrefix(dir, home) {
		t.Errorf("expected %q to be under %q", dir, home)
	}

	dir, err = AuthConfig{CredentialDir: "/tmp/creds"}.ResolvedCredentialDir()
	if err != nil || dir != "/tmp/creds" {
		t.Errorf("expected absolute path untouched, got %q (%v)", dir, err)
	}
}
