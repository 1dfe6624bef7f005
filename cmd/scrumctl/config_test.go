package main

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_ReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "server_url: https://board.example.com\n" +
		"username: alice\n" +
		"session_backend: redis\n" +
		"redis_addr: cache:6379\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://board.example.com", cfg.ServerURL)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, BackendRedis, cfg.SessionBackend)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, "warn", cfg.LogLevel, "unset keys keep their defaults")
}

func TestLoadConfig_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_backend: etcd\n"), 0o600))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "etcd")
}

func TestLoadConfig_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("SCRUMCTL_SERVER_URL", "https://env.example.com")
	t.Setenv("SCRUMCTL_SESSION_BACKEND", "memory")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.ServerURL)
	assert.Equal(t, BackendMemory, cfg.SessionBackend)
	assert.Equal(t, DefaultConfig().CookieFile, cfg.CookieFile)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: https://file.example.com\nusername: alice\n"), 0o600))
	t.Setenv("SCRUMCTL_USERNAME", "bob")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.ServerURL)
	assert.Equal(t, "bob", cfg.Username)
}

func TestCredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.json")

	_, err := loadCredentials(path)
	assert.ErrorContains(t, err, "not logged in")

	require.NoError(t, saveCredentials(path, 7, []*http.Cookie{{Name: "session", Value: "abc"}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	creds, err := loadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), creds.UserID)
	cookies := creds.httpCookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestParseID(t *testing.T) {
	id, err := parseID("42", "task")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(bad, "task")
		assert.Error(t, err, bad)
	}
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00:00", formatElapsed(0))
	assert.Equal(t, "00:01:30", formatElapsed(90*time.Second))
	assert.Equal(t, "02:05:07", formatElapsed(2*time.Hour+5*time.Minute+7*time.Second+300*time.Millisecond))
	assert.Equal(t, "26:00:00", formatElapsed(26*time.Hour))
}
