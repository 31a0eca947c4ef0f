package config

import (
	"fmt"
	"os"
	"time"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

var envLookup lookupFunc = os.LookupEnv

// parseEnv overlays cfg with the environment variables that are set.
// Durations use Go syntax ("30s", "2h").
func parseEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("API_BASE_URL", &cfg.APIBaseURL)
	str("STORAGE_PATH", &cfg.StoragePath)
	str("SESSION_STORE", &cfg.SessionStore)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("DOWNLOAD_DIR", &cfg.DownloadDir)
	str("LOG_LEVEL", &cfg.LogLevel)

	if err := dur("SESSION_TTL", &cfg.SessionTTL); err != nil {
		return err
	}
	return dur("REQUEST_TIMEOUT", &cfg.RequestTimeout)
}
