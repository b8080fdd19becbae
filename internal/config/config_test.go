package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	err := os.WriteFile(path, []byte(`# comment
APP_ADDR=127.0.0.1:8081
export APP_BACKEND_URL="http://api.internal:8080/api"
APP_TOKEN_KEY='supersecret'
EMPTY=
`), 0o600)
	require.NoError(t, err)

	env := map[string]string{
		"APP_ADDR": "127.0.0.1:3000",
	}
	getenv := func(k string) string { return env[k] }
	setenv := func(k, v string) error {
		env[k] = v
		return nil
	}

	require.NoError(t, LoadDotEnv(path, setenv, getenv))

	assert.Equal(t, "127.0.0.1:3000", env["APP_ADDR"], "existing variables must not be overridden")
	assert.Equal(t, "http://api.internal:8080/api", env["APP_BACKEND_URL"])
	assert.Equal(t, "supersecret", env["APP_TOKEN_KEY"])
	_, ok := env["EMPTY"]
	assert.False(t, ok, "empty values are not exported")
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env"), func(string, string) error { return nil }, func(string) string { return "" })
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	env := map[string]string{"APP_TOKEN_STORE": "memory"}
	cfg, err := LoadFromEnv(func(k string) string { return env[k] })
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, cfg.BackendURL, cfg.AuthURL)
	assert.Equal(t, 4*time.Second, cfg.PollInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 10, cfg.LoginRate)
}

func TestLoadFromEnv_TrimsTrailingSlash(t *testing.T) {
	env := map[string]string{
		"APP_BACKEND_URL": "https://favors.example/api/",
		"APP_TOKEN_STORE": "memory",
	}
	cfg, err := LoadFromEnv(func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, "https://favors.example/api", cfg.BackendURL)
}

func TestLoadFromEnv_Errors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad env", map[string]string{"APP_ENV": "staging"}, "APP_ENV: must be one of dev, test, prod"},
		{"relative backend", map[string]string{"APP_BACKEND_URL": "/api"}, "APP_BACKEND_URL: must be an absolute URL"},
		{"bad scheme", map[string]string{"APP_AUTH_URL": "ftp://x/api"}, "APP_AUTH_URL: scheme must be http or https"},
		{"bad poll", map[string]string{"APP_POLL_INTERVAL": "-1s"}, "APP_POLL_INTERVAL: must be > 0"},
		{"bad store", map[string]string{"APP_TOKEN_STORE": "redis"}, "APP_TOKEN_STORE: must be one of memory, file, sqlite, postgres"},
		{"postgres without dsn", map[string]string{"APP_TOKEN_STORE": "postgres"}, "APP_DB_DSN: required when APP_TOKEN_STORE=postgres"},
		{"short key in prod", map[string]string{"APP_ENV": "prod", "APP_TOKEN_STORE": "file", "APP_TOKEN_PATH": "/tmp/t"}, "APP_TOKEN_KEY: must be at least 32 bytes in prod"},
		{"bad rate", map[string]string{"APP_LOGIN_RATE": "0"}, "APP_LOGIN_RATE: must be > 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromEnv(func(k string) string { return tc.env[k] })
			require.EqualError(t, err, tc.want)
		})
	}
}

func TestLoadFromEnv_DefaultTokenPath(t *testing.T) {
	cfg, err := LoadFromEnv(func(k string) string {
		if k == "APP_TOKEN_STORE" {
			return "sqlite"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, "session.db", filepath.Base(cfg.TokenPath))

	cfg, err = LoadFromEnv(func(string) string { return "" })
	require.NoError(t, err)
	assert.Equal(t, TokenStoreFile, cfg.TokenStore)
	assert.Equal(t, "favors", filepath.Base(cfg.TokenPath))
}
