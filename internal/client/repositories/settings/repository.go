// Package settings persists small string values (tokens, cached user,
// preferences) that must survive process restarts.
package settings

import "context"

// Well-known keys.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyTheme        = "theme"
	KeyLanguage     = "language"
)

// SessionKeys are removed together whenever a session is cleared.
var SessionKeys = []string{KeyToken, KeyRefreshToken, KeyUser}

// Repository is a durable key/value store. Get returns (nil, nil) for a
// missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
