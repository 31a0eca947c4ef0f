package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/legalassist/internal/client/client/apitest"
	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokens records what the transport does with the session.
type fakeTokens struct {
	mu        sync.Mutex
	access    string
	refresh   string
	updates   []models.Tokens
	expired   int
	lastCause error
	updateErr error
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access
}

func (f *fakeTokens) RefreshToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refresh
}

func (f *fakeTokens) UpdateTokens(_ context.Context, t models.Tokens) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, t)
	f.access, f.refresh = t.Token, t.RefreshToken
	return f.updateErr
}

func (f *fakeTokens) Expire(_ context.Context, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired++
	f.lastCause = cause
	f.access, f.refresh = "", ""
}

func newTestClient(t *testing.T) (*APIClient, *apitest.Server, *fakeTokens) {
	t.Helper()
	srv := apitest.NewServer(t)
	c, err := New(srv.URL())
	require.NoError(t, err)

	ts := &fakeTokens{}
	c.SetTokenSource(ts)
	return c, srv, ts
}

func loggedIn(t *testing.T, srv *apitest.Server, ts *fakeTokens) models.User {
	t.Helper()
	u := srv.AddUser("sara@example.org", apitest.DefaultPassword, "Sara", "Alharbi")
	tok := srv.IssueTokens(u.Email)
	ts.access, ts.refresh = tok.Token, tok.RefreshToken
	return u
}

func TestTransport_AttachesBearer(t *testing.T) {
	c, srv, ts := newTestClient(t)
	u := loggedIn(t, srv, ts)

	got, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Zero(t, srv.Calls(http.MethodPost, "/api/auth/refresh"))
}

func TestTransport_RefreshesOnceAndResubmits(t *testing.T) {
	c, srv, ts := newTestClient(t)
	loggedIn(t, srv, ts)
	oldRefresh := ts.refresh

	srv.ExpireAccessTokens()

	got, err := c.Profile(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, 1, srv.Calls(http.MethodPost, "/api/auth/refresh"))
	assert.Equal(t, 2, srv.Calls(http.MethodGet, "/api/user/profile"))
	require.Len(t, ts.updates, 1)
	assert.NotEqual(t, oldRefresh, ts.refresh, "rotated refresh token is stored")
	assert.Zero(t, ts.expired)
}

func TestTransport_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	c, srv, ts := newTestClient(t)
	loggedIn(t, srv, ts)
	srv.RotateRefresh = false
	oldRefresh := ts.refresh

	srv.ExpireAccessTokens()

	_, err := c.Verify(context.Background())
	require.NoError(t, err)
	require.Len(t, ts.updates, 1)
	assert.Equal(t, oldRefresh, ts.updates[0].RefreshToken)
	assert.NotEmpty(t, ts.updates[0].Token)
}

func TestTransport_NoRefreshTokenExpiresSession(t *testing.T) {
	c, srv, ts := newTestClient(t)
	loggedIn(t, srv, ts)
	ts.refresh = ""
	srv.ExpireAccessTokens()

	_, err := c.Profile(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)

	assert.Equal(t, 1, ts.expired)
	assert.Zero(t, srv.Calls(http.MethodPost, "/api/auth/refresh"))
	assert.Equal(t, 1, srv.Calls(http.MethodGet, "/api/user/profile"))
}

func TestTransport_RefreshFailureExpiresSessionWithoutRetry(t *testing.T) {
	c, srv, ts := newTestClient(t)
	loggedIn(t, srv, ts)
	srv.FailRefresh = true
	srv.ExpireAccessTokens()

	_, err := c.ChatStats(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)

	assert.Equal(t, 1, ts.expired)
	assert.Equal(t, 1, srv.Calls(http.MethodPost, "/api/auth/refresh"))
	assert.Equal(t, 1, srv.Calls(http.MethodGet, "/api/chat/stats"))
	assert.Empty(t, ts.AccessToken())
}

// cancelOn401 cancels the request context as soon as the server answers
// 401, so the refresh that follows runs on a dead context.
type cancelOn401 struct {
	cancel context.CancelFunc
}

func (c cancelOn401) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		c.cancel()
	}
	return resp, err
}

func TestTransport_CancelledRefreshKeepsSession(t *testing.T) {
	srv := apitest.NewServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := New(srv.URL(), WithBaseTransport(cancelOn401{cancel: cancel}))
	require.NoError(t, err)
	ts := &fakeTokens{}
	c.SetTokenSource(ts)
	loggedIn(t, srv, ts)
	access, refresh := ts.access, ts.refresh
	srv.ExpireAccessTokens()

	_, err = c.Profile(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSessionExpired)

	assert.Zero(t, ts.expired)
	assert.Empty(t, ts.updates)
	assert.Equal(t, access, ts.AccessToken())
	assert.Equal(t, refresh, ts.RefreshToken())
}

func TestTransport_RetryUnauthorizedIsReturnedAsIs(t *testing.T) {
	c, srv, ts := newTestClient(t)
	loggedIn(t, srv, ts)
	srv.FailNext(http.MethodGet, "/api/user/profile", http.StatusUnauthorized, "Token revoked")
	srv.FailNext(http.MethodGet, "/api/user/profile", http.StatusUnauthorized, "Token revoked")

	_, err := c.Profile(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Token revoked", apiErr.Message)
	assert.Zero(t, ts.expired)
	assert.Equal(t, 1, srv.Calls(http.MethodPost, "/api/auth/refresh"))
	assert.Equal(t, 2, srv.Calls(http.MethodGet, "/api/user/profile"))
}

func TestAbandoned(t *testing.T) {
	live := context.Background()
	dead, cancel := context.WithCancel(live)
	cancel()

	assert.True(t, abandoned(dead, errors.New("boom")))
	assert.True(t, abandoned(live, context.Canceled))
	assert.True(t, abandoned(live, fmt.Errorf("refresh: %w", context.DeadlineExceeded)))
	assert.False(t, abandoned(live, &APIError{StatusCode: http.StatusUnauthorized, Message: "Token refresh failed"}))
}

func TestTransport_ReplaysJSONBodyAfterRefresh(t *testing.T) {
	c, srv, ts := newTestClient(t)
	loggedIn(t, srv, ts)
	srv.ExpireAccessTokens()

	res, err := c.SendMessage(context.Background(), models.SendMessageRequest{
		Message:   "What is the notice period?",
		Language:  "en",
		SessionID: "session-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "What is the notice period?", res.UserMessage.Content)
	assert.Equal(t, 2, srv.Calls(http.MethodPost, "/api/chat/message"))
}

func TestTransport_ReplaysMultipartBodyAfterRefresh(t *testing.T) {
	c, srv, ts := newTestClient(t)
	loggedIn(t, srv, ts)
	srv.ExpireAccessTokens()

	doc, err := c.UploadDocument(context.Background(), "nda.pdf", strings.NewReader("%PDF-1.7"), "ar", models.AnalysisComprehensive)
	require.NoError(t, err)

	assert.Equal(t, "nda.pdf", doc.OriginalName)
	assert.Equal(t, int64(len("%PDF-1.7")), doc.FileSize)
	assert.Equal(t, "ar", doc.Language)
}

func TestTransport_SecondRequestReusesRefreshedToken(t *testing.T) {
	c, srv, ts := newTestClient(t)
	loggedIn(t, srv, ts)
	srv.ExpireAccessTokens()

	_, err := c.Profile(context.Background())
	require.NoError(t, err)
	_, err = c.ChatStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, srv.Calls(http.MethodPost, "/api/auth/refresh"))
}

func TestTransport_AnonymousRequestsNeverRefresh(t *testing.T) {
	c, srv, ts := newTestClient(t)
	loggedIn(t, srv, ts)

	_, err := c.Login(context.Background(), models.Credentials{Email: "sara@example.org", Password: "wrong"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid email or password", apiErr.Message)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, srv.Calls(http.MethodPost, "/api/auth/refresh"))
	assert.Zero(t, ts.expired)
}

func TestTransport_WithoutTokenSourceSendsNoAuthorization(t *testing.T) {
	var seen []string
	c, err := New("http://api.test/api", WithBaseTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = append(seen, r.Header.Get("Authorization"))
		return jsonResponse(http.StatusOK, `{"success":true,"data":{"totalChats":1}}`), nil
	})))
	require.NoError(t, err)

	_, err = c.ChatStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{""}, seen)
}

func TestRewind_NonReplayableBody(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "http://x", io.NopCloser(strings.NewReader("x")))
	require.NoError(t, err)
	req.GetBody = nil

	_, err = rewind(req)
	require.True(t, errors.Is(err, ErrBodyNotReplayable))

	req, err = http.NewRequest(http.MethodGet, "http://x", nil)
	require.NoError(t, err)
	out, err := rewind(req)
	require.NoError(t, err)
	assert.Nil(t, out.Body)
}
