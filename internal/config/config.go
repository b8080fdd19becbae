package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBackendURL = "http://localhost:8080/api"

	TokenStoreMemory   = "memory"
	TokenStoreFile     = "file"
	TokenStoreSQLite   = "sqlite"
	TokenStorePostgres = "postgres"
)

type Config struct {
	Env      string
	Addr     string
	LogLevel string

	BackendURL     string
	AuthURL        string
	BackendTimeout time.Duration

	TokenStore string
	TokenPath  string
	TokenKey   string
	DBDSN      string

	PollInterval   time.Duration
	SearchDebounce time.Duration
	LoginRate      int
}

// Load reads .env (when present) into the process environment without
// overriding variables that are already set, then loads the config.
func Load() (Config, error) {
	if err := LoadDotEnv(".env", os.Setenv, os.Getenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadFromEnv(os.Getenv)
}

func LoadDotEnv(path string, setenv func(string, string) error, getenv func(string) string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	for k, v := range vars {
		if v == "" || getenv(k) != "" {
			continue
		}
		if err := setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:        getenv("APP_ENV"),
		Addr:       getenv("APP_ADDR"),
		LogLevel:   getenv("APP_LOG_LEVEL"),
		BackendURL: strings.TrimRight(getenv("APP_BACKEND_URL"), "/"),
		AuthURL:    strings.TrimRight(getenv("APP_AUTH_URL"), "/"),
		TokenStore: strings.ToLower(strings.TrimSpace(getenv("APP_TOKEN_STORE"))),
		TokenPath:  getenv("APP_TOKEN_PATH"),
		TokenKey:   getenv("APP_TOKEN_KEY"),
		DBDSN:      getenv("APP_DB_DSN"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:3000"
	}
	if cfg.BackendURL == "" {
		cfg.BackendURL = DefaultBackendURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = cfg.BackendURL
	}
	if cfg.TokenStore == "" {
		cfg.TokenStore = TokenStoreFile
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	if err := validateBaseURL("APP_BACKEND_URL", cfg.BackendURL); err != nil {
		return Config{}, err
	}
	if err := validateBaseURL("APP_AUTH_URL", cfg.AuthURL); err != nil {
		return Config{}, err
	}

	var err error
	if cfg.BackendTimeout, err = durationOr(getenv, "APP_BACKEND_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = durationOr(getenv, "APP_POLL_INTERVAL", 4*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SearchDebounce, err = durationOr(getenv, "APP_SEARCH_DEBOUNCE", 300*time.Millisecond); err != nil {
		return Config{}, err
	}

	cfg.LoginRate = 10
	if raw := getenv("APP_LOGIN_RATE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_LOGIN_RATE: %w", err)
		}
		if n <= 0 {
			return Config{}, errors.New("APP_LOGIN_RATE: must be > 0")
		}
		cfg.LoginRate = n
	}

	switch cfg.TokenStore {
	case TokenStoreMemory:
	case TokenStoreFile, TokenStoreSQLite:
		if cfg.TokenPath == "" {
			cfg.TokenPath = defaultTokenPath(cfg.TokenStore)
		}
	case TokenStorePostgres:
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required when APP_TOKEN_STORE=postgres")
		}
	default:
		return Config{}, errors.New("APP_TOKEN_STORE: must be one of memory, file, sqlite, postgres")
	}

	if cfg.IsProd() && cfg.TokenStore != TokenStoreMemory && len(cfg.TokenKey) < 32 {
		return Config{}, errors.New("APP_TOKEN_KEY: must be at least 32 bytes in prod")
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func validateBaseURL(name, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%s: must be an absolute URL", name)
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("%s: scheme must be http or https", name)
	}
	return nil
}

func durationOr(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	raw := getenv(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", name)
	}
	return d, nil
}

// defaultTokenPath is a directory for the file store and a database file
// for the sqlite store.
func defaultTokenPath(kind string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	dir = filepath.Join(dir, "favors")
	if kind == TokenStoreSQLite {
		return filepath.Join(dir, "session.db")
	}
	return dir
}
