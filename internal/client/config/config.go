package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings for the legal-assistant CLI.
//
// Fields:
//   - APIBaseURL: base URL of the backend REST API, including the /api prefix.
//   - StoragePath: SQLite file holding tokens, the cached user and UI preferences.
//   - SessionStore: session-scoped storage driver, "memory" or "redis".
//   - RedisAddr: host:port of redis when SessionStore is "redis".
//   - SessionTTL: expiry of session-scoped keys in redis.
//   - DownloadDir: directory downloaded documents are written to.
//   - LogLevel: debug, info, warn or error.
//   - RequestTimeout: per-request HTTP timeout; zero means none.
type Config struct {
	APIBaseURL     string
	StoragePath    string
	SessionStore   string
	RedisAddr      string
	SessionTTL     time.Duration
	DownloadDir    string
	LogLevel       string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:3001/api"
	c.StoragePath = "legalassist.db"
	c.SessionStore = "memory"
	c.RedisAddr = "127.0.0.1:6379"
	c.SessionTTL = 24 * time.Hour
	c.DownloadDir = "."
	c.LogLevel = "info"
	c.RequestTimeout = 0
}

// LoadConfig builds a Config from defaults, then .env and the environment,
// then an optional JSON or YAML file, then command-line flags. Later sources
// take precedence over earlier ones. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	// A missing .env is normal.
	_ = godotenv.Load()

	if err := parseEnv(cfg, envLookup); err != nil {
		return nil, err
	}
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
