package shared

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Tunnel      TunnelConfig      `toml:"tunnel"`
	Store       StoreConfig       `toml:"store"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	HTTP        HTTPConfig        `toml:"http"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
}

// Map returns the credentials in the shape accepted by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"scope":         strings.Join(s.Scopes, " "),
	}
}

// Validate reports missing client credentials.
func (s SpotifyConfig) Validate() error {
	var errs []error
	if s.ClientID == "" {
		errs = append(errs, fmt.Errorf("%w: credentials.spotify.client_id", ErrMissingCredentials))
	}
	if s.ClientSecret == "" {
		errs = append(errs, fmt.Errorf("%w: credentials.spotify.client_secret", ErrMissingCredentials))
	}
	return errors.Join(errs...)
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	CookieName   string `toml:"cookie_name"`
	SecureCookie bool   `toml:"secure_cookie"`
	// LoginRate is the number of /login and /callback hits allowed per second across the process.
	LoginRate  float64 `toml:"login_rate"`
	LoginBurst int     `toml:"login_burst"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TunnelConfig controls redirect URI discovery through a local ngrok agent.
type TunnelConfig struct {
	Enabled bool   `toml:"enabled"`
	APIURL  string `toml:"api_url"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Driver        string `toml:"driver"` // memory (also when empty), sqlite or redis
	EncryptionKey string `toml:"encryption_key"`
}

// Key decodes the base64 encryption key.
func (s StoreConfig) Key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, fmt.Errorf("%w: store.encryption_key is required for the %s store", ErrInvalidConfig, s.Driver)
	}
	key, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: store.encryption_key is not base64: %v", ErrInvalidConfig, err)
	}
	return key, nil
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// HTTPConfig bounds outbound provider calls.
type HTTPConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Timeout returns the outbound request timeout, 15 seconds when unset.
func (h HTTPConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// Validate checks the settings required to run the authorization flow.
func (c *Config) Validate() error {
	errs := []error{c.Credentials.Spotify.Validate()}
	if c.Credentials.Spotify.RedirectURI == "" && !c.Tunnel.Enabled {
		errs = append(errs, fmt.Errorf("%w: redirect_uri must be set when the tunnel is disabled", ErrInvalidConfig))
	}
	switch c.Store.Driver {
	case "", "memory", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: server.port %d", ErrInvalidConfig, c.Server.Port))
	}
	return errors.Join(errs...)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes the configuration to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolveConfig loads the file at path when it exists (defaults otherwise), then applies
// environment overrides, reading envFile first when present.
func ResolveConfig(path, envFile string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides configuration values from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SPOTIFY_CLIENT_ID"); ok && v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v, ok := lookup("SPOTIFY_CLIENT_SECRET"); ok && v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v, ok := lookup("SPOTIFY_REDIRECT_URI"); ok && v != "" {
		c.Credentials.Spotify.RedirectURI = v
	}
	if v, ok := lookup("SPOTAUTH_ENCRYPTION_KEY"); ok && v != "" {
		c.Store.EncryptionKey = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	return nil
}
