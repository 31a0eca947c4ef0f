package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/legalassist/internal/flagx"
	"github.com/dmitrijs2005/legalassist/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used only for decoding config files.
// Durations go through timex.Duration so files may use "30s" or nanoseconds.
type FileConfig struct {
	APIBaseURL     string         `json:"api_base_url" yaml:"api_base_url"`
	StoragePath    string         `json:"storage_path" yaml:"storage_path"`
	SessionStore   string         `json:"session_store" yaml:"session_store"`
	RedisAddr      string         `json:"redis_addr" yaml:"redis_addr"`
	SessionTTL     timex.Duration `json:"session_ttl" yaml:"session_ttl"`
	DownloadDir    string         `json:"download_dir" yaml:"download_dir"`
	LogLevel       string         `json:"log_level" yaml:"log_level"`
	RequestTimeout timex.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// parseFile overlays cfg with the file named by -c or -config, if any.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
// Empty fields in the file leave cfg untouched.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.APIBaseURL, fc.APIBaseURL)
	set(&cfg.StoragePath, fc.StoragePath)
	set(&cfg.SessionStore, fc.SessionStore)
	set(&cfg.RedisAddr, fc.RedisAddr)
	set(&cfg.DownloadDir, fc.DownloadDir)
	set(&cfg.LogLevel, fc.LogLevel)

	if fc.SessionTTL.Duration != 0 {
		cfg.SessionTTL = fc.SessionTTL.Duration
	}
	if fc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
}
