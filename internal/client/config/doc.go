// Package config loads runtime configuration for the legal-assistant CLI.
//
// # Sources and precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A .env file in the working directory, then the process environment.
//  3. Optional JSON or YAML file selected with -c or -config.
//  4. Command-line flags, which override earlier values.
//
// # Environment
//
//	API_BASE_URL     backend API base URL
//	STORAGE_PATH     local SQLite file
//	SESSION_STORE    memory | redis
//	REDIS_ADDR       host:port of redis
//	SESSION_TTL      expiry of session-scoped keys ("24h")
//	DOWNLOAD_DIR     where downloaded documents go
//	LOG_LEVEL        debug | info | warn | error
//	REQUEST_TIMEOUT  per-request HTTP timeout ("30s"; 0 disables)
//
// # Flags
//
//	-a string   backend API base URL
//	-d string   local storage file
//	-s string   session store driver
//	-l string   log level
//
// # File schema
//
// Files ending in .yaml or .yml are read as YAML, others as JSON. Durations
// may be strings like "30s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "http://localhost:3001/api",
//	  "storage_path": "legalassist.db",
//	  "session_store": "redis",
//	  "redis_addr": "127.0.0.1:6379",
//	  "session_ttl": "12h",
//	  "download_dir": "./downloads",
//	  "log_level": "debug",
//	  "request_timeout": "30s"
//	}
package config
