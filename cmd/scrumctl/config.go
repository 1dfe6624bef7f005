package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Session backends for the local work-session store.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds CLI settings read from ~/.scrumctl/config.yaml.
type Config struct {
	ServerURL      string `mapstructure:"server_url"`
	Username       string `mapstructure:"username"`
	SessionBackend string `mapstructure:"session_backend"`
	SessionDBPath  string `mapstructure:"session_db_path"`
	RedisAddr      string `mapstructure:"redis_addr"`
	CookieFile     string `mapstructure:"cookie_file"`
	LogLevel       string `mapstructure:"log_level"`
}

// DefaultConfig returns settings for a local server and a SQLite store.
func DefaultConfig() *Config {
	dir := configDir()
	return &Config{
		ServerURL:      "http://localhost:8080",
		SessionBackend: BackendSQLite,
		SessionDBPath:  filepath.Join(dir, "sessions.db"),
		RedisAddr:      "localhost:6379",
		CookieFile:     filepath.Join(dir, "cookies.json"),
		LogLevel:       "warn",
	}
}

// LoadConfig merges the config file at path, or the default path, and then
// SCRUMCTL_* environment variables over the defaults. A missing file is not
// an error.
func LoadConfig(path string) (*Config, error) {
	defaults := DefaultConfig()
	if path == "" {
		path = filepath.Join(configDir(), "config.yaml")
	}

	v := viper.New()
	v.SetEnvPrefix("SCRUMCTL")
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows, so every key gets a default.
	v.SetDefault("server_url", defaults.ServerURL)
	v.SetDefault("username", defaults.Username)
	v.SetDefault("session_backend", defaults.SessionBackend)
	v.SetDefault("session_db_path", defaults.SessionDBPath)
	v.SetDefault("redis_addr", defaults.RedisAddr)
	v.SetDefault("cookie_file", defaults.CookieFile)
	v.SetDefault("log_level", defaults.LogLevel)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	switch cfg.SessionBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown session_backend %q", cfg.SessionBackend)
	}
	return cfg, nil
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scrumctl"
	}
	return filepath.Join(home, ".scrumctl")
}

// credentials is what login leaves behind for later commands.
type credentials struct {
	UserID  uint64            `json:"user_id"`
	Cookies map[string]string `json:"cookies"`
}

func saveCredentials(path string, userID uint64, cookies []*http.Cookie) error {
	creds := credentials{UserID: userID, Cookies: make(map[string]string, len(cookies))}
	for _, c := range cookies {
		creds.Cookies[c.Name] = c.Value
	}
	raw, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func loadCredentials(path string) (*credentials, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.New("not logged in, run scrumctl login first")
	}
	if err != nil {
		return nil, err
	}
	var creds credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("corrupt credentials in %s: %w", path, err)
	}
	return &creds, nil
}

func (c *credentials) httpCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(c.Cookies))
	for name, value := range c.Cookies {
		out = append(out, &http.Cookie{Name: name, Value: value})
	}
	return out
}
