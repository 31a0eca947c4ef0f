// Package sessionstate keeps values that live for one client session only
// (the active conversation id and title). Callers prefix keys with their
// session id, so a restarted client starts empty and redis expires what
// earlier sessions left behind.
package sessionstate

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KeyChatID    = "currentChatId"
	KeyChatTitle = "currentChatTitle"
)

var (
	ErrInvalidStoreType = errors.New("invalid session store type")
	ErrInvalidConfig    = errors.New("invalid session store configuration")
)

// StoreType selects the driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// Store is a string key/value store scoped to one session. Get reports
// ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	ttl         time.Duration
	namespace   string
}

// WithRedisClient sets the client used by the redis driver.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithTTL sets the expiry of redis keys. Defaults to 24h.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.ttl = ttl
	}
}

// WithNamespace isolates keys of one session from another sharing the same
// redis instance.
func WithNamespace(ns string) StoreOption {
	return func(c *storeConfig) {
		c.namespace = ns
	}
}

// NewStore builds a Store of the given type. The redis driver requires
// WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil

	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.namespace, cfg.ttl), nil

	default:
		return nil, ErrInvalidStoreType
	}
}
