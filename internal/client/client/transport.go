package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/dmitrijs2005/legalassist/internal/logging"
	"golang.org/x/sync/singleflight"
)

type ctxKey int

const anonymousKey ctxKey = iota

// withAnonymous marks a request that must not carry a token and must not
// trigger a refresh (login, register, refresh itself).
func withAnonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey, true)
}

func isAnonymous(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousKey).(bool)
	return v
}

type refreshFunc func(ctx context.Context, refreshToken string) (models.Tokens, error)

// authTransport attaches the bearer token and performs at most one
// refresh-and-resubmit per request on 401.
type authTransport struct {
	next    http.RoundTripper
	refresh refreshFunc
	log     logging.Logger

	mu     sync.RWMutex
	tokens TokenSource

	// concurrent 401s holding the same refresh token share one refresh call
	group singleflight.Group
}

func newAuthTransport(next http.RoundTripper, refresh refreshFunc, log logging.Logger) *authTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &authTransport{next: next, refresh: refresh, log: log}
}

func (t *authTransport) setTokenSource(ts TokenSource) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens = ts
}

func (t *authTransport) tokenSource() TokenSource {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tokens
}

func withBearer(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	return out
}

// rewind returns a copy of req whose body can be sent again.
func rewind(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, ErrBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBodyNotReplayable, err)
	}
	out.Body = body
	return out, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// abandoned reports whether a refresh failed because a caller gave up
// rather than because the server rejected the refresh token. The shared
// flight may have been cancelled by another caller's context.
func abandoned(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	ts := t.tokenSource()

	if isAnonymous(ctx) || ts == nil {
		return t.next.RoundTrip(req)
	}

	sent := ts.AccessToken()
	resp, err := t.next.RoundTrip(withBearer(req, sent))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	drain(resp)

	// another request already refreshed the pair while this one was in flight
	if cur := ts.AccessToken(); cur != "" && cur != sent {
		retry, err := rewind(req)
		if err != nil {
			return nil, err
		}
		return t.next.RoundTrip(withBearer(retry, cur))
	}

	refreshToken := ts.RefreshToken()
	if refreshToken == "" {
		t.log.Warn(ctx, "401 without refresh token, expiring session", "path", req.URL.Path)
		ts.Expire(ctx, ErrSessionExpired)
		return nil, ErrSessionExpired
	}

	v, err, _ := t.group.Do(refreshToken, func() (any, error) {
		tokens, err := t.refresh(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		if tokens.RefreshToken == "" {
			tokens.RefreshToken = refreshToken
		}
		if err := ts.UpdateTokens(ctx, tokens); err != nil {
			t.log.Error(ctx, "failed to store refreshed tokens", "error", err)
		}
		t.log.Info(ctx, "access token refreshed", "path", req.URL.Path)
		return tokens, nil
	})
	if err != nil && abandoned(ctx, err) {
		t.log.Debug(ctx, "token refresh abandoned", "path", req.URL.Path, "error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if err != nil {
		t.log.Warn(ctx, "token refresh failed, expiring session", "path", req.URL.Path, "error", err)
		ts.Expire(ctx, err)
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	tokens := v.(models.Tokens)

	retry, err := rewind(req)
	if err != nil {
		return nil, err
	}
	return t.next.RoundTrip(withBearer(retry, tokens.Token))
}
