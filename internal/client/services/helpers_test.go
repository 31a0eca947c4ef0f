package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/legalassist/internal/client/client"
	"github.com/dmitrijs2005/legalassist/internal/client/client/apitest"
	"github.com/dmitrijs2005/legalassist/internal/client/repositories/sessionstate"
	"github.com/dmitrijs2005/legalassist/internal/client/repositories/settings"
	"github.com/dmitrijs2005/legalassist/internal/logging"
	"github.com/stretchr/testify/require"
)

type env struct {
	srv      *apitest.Server
	api      *client.APIClient
	db       *sql.DB
	state    *sessionstate.MemoryStore
	session  *SessionStore
	chat     *ChatStore
	docs     *DocumentStore
	settings *settings.SQLiteRepository
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newEnv(t *testing.T) *env {
	t.Helper()

	srv := apitest.NewServer(t)
	api, err := client.New(srv.URL())
	require.NoError(t, err)

	db := setupDB(t)
	state := sessionstate.NewMemoryStore()
	log := logging.Discard()

	session := NewSessionStore(api, db, log)
	api.SetTokenSource(session.TokenSource())

	return &env{
		srv:      srv,
		api:      api,
		db:       db,
		state:    state,
		session:  session,
		chat:     NewChatStore(api, state, log),
		docs:     NewDocumentStore(api, log),
		settings: settings.NewSQLiteRepository(db),
	}
}

// login signs a seeded account in through the session store.
func (e *env) login(t *testing.T) {
	t.Helper()
	e.srv.AddUser("layla@example.org", apitest.DefaultPassword, "Layla", "Hassan")
	_, err := e.session.Login(context.Background(), credentials("layla@example.org", apitest.DefaultPassword))
	require.NoError(t, err)
}

func (e *env) stored(t *testing.T, key string) string {
	t.Helper()
	v, err := e.settings.Get(context.Background(), key)
	require.NoError(t, err)
	return string(v)
}
