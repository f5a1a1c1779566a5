package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.Port != 8888 {
			t.Errorf("expected server port 8888, got %d", config.Server.Port)
		}

		if config.Store.Driver != "memory" {
			t.Errorf("expected memory store, got %s", config.Store.Driver)
		}

		if config.Credentials.Spotify.ClientID != "" || config.Credentials.Spotify.ClientSecret != "" {
			t.Errorf("expected no default credentials, got %+v", config.Credentials.Spotify)
		}

		if got := config.Credentials.Spotify.Map()["scope"]; got != "user-read-private user-read-email" {
			t.Errorf("unexpected scope %q", got)
		}

		if err := config.Validate(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("default config should require credentials, got %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

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
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[server]
host = "0.0.0.0"
port = 9000

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:9000/callback"

[store]
driver = "sqlite"

[http]
timeout_seconds = 3
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Addr() != "0.0.0.0:9000" {
			t.Errorf("expected addr 0.0.0.0:9000, got %s", config.Server.Addr())
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.HTTP.Timeout() != 3*time.Second {
			t.Errorf("expected 3s timeout, got %v", config.HTTP.Timeout())
		}
		if len(config.Credentials.Spotify.Scopes) != 2 {
			t.Errorf("expected default scopes to survive partial file, got %v", config.Credentials.Spotify.Scopes)
		}
	})

	t.Run("SaveConfig Round Trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Server.Port = 7777

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Server.Port != 7777 {
			t.Errorf("expected port 7777, got %d", loaded.Server.Port)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		env := map[string]string{
			"SPOTIFY_CLIENT_ID":     "env_id",
			"SPOTIFY_CLIENT_SECRET": "env_secret",
			"SPOTIFY_REDIRECT_URI":  "https://example.ngrok-free.app/callback",
			"PORT":                  "8080",
		}
		lookup := func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}

		config := DefaultConfig()
		if err := config.ApplyEnv(lookup); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env_id" {
			t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.RedirectURI != "https://example.ngrok-free.app/callback" {
			t.Errorf("unexpected redirect uri %s", config.Credentials.Spotify.RedirectURI)
		}
		if config.Server.Port != 8080 {
			t.Errorf("expected port 8080, got %d", config.Server.Port)
		}

		env["PORT"] = "eighty"
		if err := config.ApplyEnv(lookup); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		config.Credentials.Spotify.ClientSecret = ""
		config.Credentials.Spotify.RedirectURI = ""
		config.Store.Driver = "postgres"

		err := config.Validate()
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}

		config = DefaultConfig()
		config.Credentials.Spotify.ClientID = "id"
		config.Credentials.Spotify.ClientSecret = "secret"
		config.Credentials.Spotify.RedirectURI = ""
		config.Tunnel.Enabled = true
		if err := config.Validate(); err != nil {
			t.Errorf("tunnel-resolved redirect should validate, got %v", err)
		}

		config.Store.Driver = ""
		if err := config.Validate(); err != nil {
			t.Errorf("empty store driver selects memory and should validate, got %v", err)
		}
	})

	t.Run("SpotifyConfig Validate", func(t *testing.T) {
		tests := []struct {
			name   string
			config SpotifyConfig
			ok     bool
		}{
			{"both set", SpotifyConfig{ClientID: "id", ClientSecret: "secret"}, true},
			{"missing id", SpotifyConfig{ClientSecret: "secret"}, false},
			{"missing secret", SpotifyConfig{ClientID: "id"}, false},
			{"empty", SpotifyConfig{}, false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.config.Validate()
				if tt.ok && err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				if !tt.ok && !errors.Is(err, ErrMissingCredentials) {
					t.Errorf("expected ErrMissingCredentials, got %v", err)
				}
			})
		}
	})

	t.Run("StoreKey", func(t *testing.T) {
		store := StoreConfig{Driver: "sqlite"}
		if _, err := store.Key(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for missing key, got %v", err)
		}

		store.EncryptionKey = "not base64!"
		if _, err := store.Key(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for bad key, got %v", err)
		}

		key, err := NewKey()
		if err != nil {
			t.Fatalf("failed to generate key: %v", err)
		}
		store.EncryptionKey = key
		raw, err := store.Key()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(raw) != 32 {
			t.Errorf("expected 32 byte key, got %d", len(raw))
		}
	})
}
