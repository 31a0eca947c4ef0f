// Package services holds the client-side state containers: the session,
// the active conversation, the document library and UI preferences. Each
// store owns its state behind a mutex, talks to the backend through the API
// client and never holds its lock across a network call.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/legalassist/internal/client/client"
	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/dmitrijs2005/legalassist/internal/client/repositories/settings"
	"github.com/dmitrijs2005/legalassist/internal/dbx"
	"github.com/dmitrijs2005/legalassist/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// DB is the local database: plain queries plus transactions.
// *sql.DB satisfies it.
type DB interface {
	dbx.DBTX
	dbx.TxBeginner
}

type SessionState string

const (
	StateAnonymous     SessionState = "anonymous"
	StatePending       SessionState = "pending"
	StateAuthenticated SessionState = "authenticated"
	StateError         SessionState = "error"
)

// Session is a point-in-time copy of the session store.
type Session struct {
	User            *models.User
	Token           string
	RefreshToken    string
	IsAuthenticated bool
	State           SessionState
	LastError       string
	AuthModalOpen   bool
}

type SessionStore struct {
	api client.AuthAPI
	db  DB
	log logging.Logger

	mu        sync.RWMutex
	user      *models.User
	token     string
	refresh   string
	state     SessionState
	lastErr   string
	modalOpen bool
	onExpired func(ctx context.Context, cause error)
}

func NewSessionStore(api client.AuthAPI, db DB, log logging.Logger) *SessionStore {
	return &SessionStore{
		api:   api,
		db:    db,
		log:   log.With("component", "session"),
		state: StateAnonymous,
	}
}

// OnSessionExpired registers the callback fired when the transport gives
// up on the session. The view uses it to bring up the login prompt.
func (s *SessionStore) OnSessionExpired(fn func(ctx context.Context, cause error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = fn
}

func (s *SessionStore) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u *models.User
	if s.user != nil {
		c := *s.user
		u = &c
	}
	return Session{
		User:            u,
		Token:           s.token,
		RefreshToken:    s.refresh,
		IsAuthenticated: s.token != "",
		State:           s.state,
		LastError:       s.lastErr,
		AuthModalOpen:   s.modalOpen,
	}
}

func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *SessionStore) User() *models.User {
	return s.Snapshot().User
}

func (s *SessionStore) setPending() {
	s.mu.Lock()
	s.state = StatePending
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *SessionStore) fail(state SessionState, msg string) {
	s.mu.Lock()
	s.state = state
	s.lastErr = msg
	s.mu.Unlock()
}

// Login authenticates with e-mail and password. On failure the server's
// message is kept in LastError and the session stays anonymous.
func (s *SessionStore) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	if err := validateCredentials(creds); err != nil {
		s.fail(StateAnonymous, err.Error())
		return nil, err
	}

	s.setPending()
	res, err := s.api.Login(ctx, creds)
	if err != nil {
		s.log.Warn(ctx, "login failed", "email", creds.Email, "error", err)
		s.fail(StateAnonymous, client.Message(err, "Login failed"))
		return nil, err
	}
	return s.establish(ctx, res)
}

// Register creates an account. A password confirmation mismatch is
// rejected locally without contacting the server.
func (s *SessionStore) Register(ctx context.Context, reg models.Registration) (*models.User, error) {
	if reg.Password != reg.ConfirmPassword {
		s.fail(StateAnonymous, ErrPasswordMismatch.Error())
		return nil, ErrPasswordMismatch
	}
	if err := validateRegistration(reg); err != nil {
		s.fail(StateAnonymous, err.Error())
		return nil, err
	}

	s.setPending()
	res, err := s.api.Register(ctx, reg)
	if err != nil {
		s.log.Warn(ctx, "registration failed", "email", reg.Email, "error", err)
		s.fail(StateAnonymous, client.Message(err, "Registration failed"))
		return nil, err
	}
	return s.establish(ctx, res)
}

func (s *SessionStore) establish(ctx context.Context, res *models.AuthResult) (*models.User, error) {
	if res == nil || res.Token == "" {
		s.fail(StateAnonymous, "Login failed")
		return nil, client.ErrUnexpectedResponse
	}

	if err := s.persist(ctx, res.Token, res.RefreshToken, res.User); err != nil {
		s.log.Error(ctx, "failed to persist session", "error", err)
	}

	s.mu.Lock()
	s.user = res.User
	s.token = res.Token
	s.refresh = res.RefreshToken
	s.state = StateAuthenticated
	s.lastErr = ""
	s.modalOpen = false
	s.mu.Unlock()

	s.log.Info(ctx, "session established", "user", res.User.DisplayName())
	return s.User(), nil
}

// persist writes the token pair and the user record in one transaction.
// Empty values are stored as deletions so storage never holds stale keys.
func (s *SessionStore) persist(ctx context.Context, token, refresh string, user *models.User) error {
	values := map[string][]byte{}
	var remove []string

	put := func(key string, v []byte) {
		if len(v) == 0 {
			remove = append(remove, key)
			return
		}
		values[key] = v
	}

	put(settings.KeyToken, []byte(token))
	put(settings.KeyRefreshToken, []byte(refresh))
	if user != nil {
		b, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}
		put(settings.KeyUser, b)
	} else {
		put(settings.KeyUser, nil)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := settings.NewSQLiteRepository(tx)
		if err := repo.SetMany(ctx, values); err != nil {
			return err
		}
		if len(remove) > 0 {
			return repo.Delete(ctx, remove...)
		}
		return nil
	})
}

func (s *SessionStore) persistUser(ctx context.Context, user *models.User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return settings.NewSQLiteRepository(s.db).Set(ctx, settings.KeyUser, b)
}

// Clear drops the session from memory and removes all three durable keys
// in one transaction.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.refresh = ""
	s.state = StateAnonymous
	s.mu.Unlock()

	// memory is already cleared, so storage must follow even when the
	// caller's context is done
	err := dbx.WithTx(context.WithoutCancel(ctx), s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return settings.NewSQLiteRepository(tx).Delete(ctx, settings.SessionKeys...)
	})
	if err != nil {
		s.log.Error(ctx, "failed to clear stored session", "error", err)
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// clearWith clears the session and leaves it in state with msg recorded.
func (s *SessionStore) clearWith(ctx context.Context, state SessionState, msg string) {
	_ = s.Clear(ctx)
	s.fail(state, msg)
}

// Logout notifies the server when a token is held and clears local state
// whatever the outcome. Calling it while logged out is a no-op that still
// leaves storage empty.
func (s *SessionStore) Logout(ctx context.Context) error {
	if s.IsAuthenticated() {
		if err := s.api.Logout(ctx); err != nil {
			s.log.Warn(ctx, "server logout failed", "error", err)
		}
	}

	if err := s.Clear(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.log.Info(ctx, "logged out")
	return nil
}

// VerifyToken checks the stored access token with the server. A failure is
// treated as an invalid token: the session is cleared.
func (s *SessionStore) VerifyToken(ctx context.Context) (*models.User, error) {
	if !s.IsAuthenticated() {
		s.clearWith(ctx, StateError, "No token found")
		return nil, ErrNotAuthenticated
	}

	s.setPending()
	user, err := s.api.Verify(ctx)
	if err != nil {
		s.log.Warn(ctx, "token verification failed", "error", err)
		s.clearWith(ctx, StateError, client.Message(err, "Token verification failed"))
		return nil, err
	}
	if user == nil {
		s.clearWith(ctx, StateError, "Token verification failed")
		return nil, client.ErrUnexpectedResponse
	}

	if err := s.persistUser(ctx, user); err != nil {
		s.log.Error(ctx, "failed to persist user", "error", err)
	}

	s.mu.Lock()
	s.user = user
	s.state = StateAuthenticated
	s.mu.Unlock()
	return s.User(), nil
}

// RefreshToken exchanges refreshToken, or the stored one when empty, for a
// new pair. Any failure clears the whole session.
func (s *SessionStore) RefreshToken(ctx context.Context, refreshToken string) (models.Tokens, error) {
	if refreshToken == "" {
		s.mu.RLock()
		refreshToken = s.refresh
		s.mu.RUnlock()
	}
	if refreshToken == "" {
		s.clearWith(ctx, StateError, "No refresh token")
		return models.Tokens{}, ErrNotAuthenticated
	}

	s.setPending()
	tokens, err := s.api.Refresh(ctx, refreshToken)
	if err != nil {
		s.log.Warn(ctx, "token refresh failed", "error", err)
		s.clearWith(ctx, StateError, client.Message(err, "Token refresh failed"))
		return models.Tokens{}, err
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}

	if err := s.storeTokens(ctx, tokens); err != nil {
		s.log.Error(ctx, "failed to persist tokens", "error", err)
	}
	s.mu.Lock()
	s.state = StateAuthenticated
	s.mu.Unlock()
	return tokens, nil
}

func (s *SessionStore) storeTokens(ctx context.Context, tokens models.Tokens) error {
	s.mu.Lock()
	s.token = tokens.Token
	s.refresh = tokens.RefreshToken
	s.mu.Unlock()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return settings.NewSQLiteRepository(tx).SetMany(ctx, map[string][]byte{
			settings.KeyToken:        []byte(tokens.Token),
			settings.KeyRefreshToken: []byte(tokens.RefreshToken),
		})
	})
}

// GetUserProfile reloads the user record. A failure is reported but the
// session is kept.
func (s *SessionStore) GetUserProfile(ctx context.Context) (*models.User, error) {
	user, err := s.api.Profile(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastErr = client.Message(err, "Failed to fetch profile")
		s.mu.Unlock()
		return nil, err
	}
	if user == nil {
		return nil, client.ErrUnexpectedResponse
	}

	if err := s.persistUser(ctx, user); err != nil {
		s.log.Error(ctx, "failed to persist user", "error", err)
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return s.User(), nil
}

// UpdateUser applies a local edit to the cached user and persists it.
func (s *SessionStore) UpdateUser(ctx context.Context, patch models.UserPatch) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	u := *s.user
	u.Apply(patch)
	s.user = &u
	s.mu.Unlock()

	return s.persistUser(ctx, &u)
}

// LoadFromStorage rebuilds the session from durable storage. It reports
// whether a user record was restored alongside the token; a token without
// a user is loaded but needs VerifyToken.
func (s *SessionStore) LoadFromStorage(ctx context.Context) (bool, error) {
	values, err := settings.NewSQLiteRepository(s.db).List(ctx)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}

	token := string(values[settings.KeyToken])
	refresh := string(values[settings.KeyRefreshToken])

	var user *models.User
	if raw := values[settings.KeyUser]; len(raw) > 0 {
		var u models.User
		if err := json.Unmarshal(raw, &u); err != nil {
			s.log.Warn(ctx, "stored user record is unreadable, ignoring", "error", err)
		} else {
			user = &u
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.refresh = refresh
	s.user = nil
	s.state = StateAnonymous
	if token != "" && user != nil {
		s.user = user
		s.state = StateAuthenticated
		return true, nil
	}
	return false, nil
}

// Bootstrap is the startup sequence: restore from storage and verify the
// token when no user record was cached with it.
func (s *SessionStore) Bootstrap(ctx context.Context) error {
	restored, err := s.LoadFromStorage(ctx)
	if err != nil {
		return err
	}
	if restored || !s.IsAuthenticated() {
		return nil
	}
	_, err = s.VerifyToken(ctx)
	return err
}

func (s *SessionStore) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	if s.state == StateError {
		s.state = StateAnonymous
	}
	s.mu.Unlock()
}

func (s *SessionStore) SetAuthModalOpen(open bool) {
	s.mu.Lock()
	s.modalOpen = open
	s.mu.Unlock()
}

// AccessTokenExpiry reads the exp claim of the access token without
// verifying the signature; the server remains the authority.
func (s *SessionStore) AccessTokenExpiry() (time.Time, bool) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenSource adapts the store to the API client's transport.
func (s *SessionStore) TokenSource() client.TokenSource {
	return sessionTokens{s}
}

type sessionTokens struct{ s *SessionStore }

func (t sessionTokens) AccessToken() string {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.token
}

func (t sessionTokens) RefreshToken() string {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.refresh
}

func (t sessionTokens) UpdateTokens(ctx context.Context, tokens models.Tokens) error {
	return t.s.storeTokens(ctx, tokens)
}

// Expire tears the session down after the transport could not recover
// from a 401 and fires the expiry hook.
func (t sessionTokens) Expire(ctx context.Context, cause error) {
	s := t.s
	msg := "Session expired, please log in again"
	if cause != nil && !errors.Is(cause, client.ErrSessionExpired) {
		s.log.Warn(ctx, "session expired", "cause", cause)
	}
	s.clearWith(ctx, StateAnonymous, msg)

	s.mu.RLock()
	hook := s.onExpired
	s.mu.RUnlock()
	if hook != nil {
		hook(ctx, cause)
	}
}
