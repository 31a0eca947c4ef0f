// Package apitest runs an in-memory imitation of the legal-assistant REST
// API on httptest. It issues real JWTs, can expire them on demand and
// counts calls per route so tests can assert on refresh behaviour.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultPassword = "Passw0rd!"
	signingKey      = "apitest-secret"
)

type account struct {
	user     models.User
	password string
}

type failure struct {
	status  int
	message string
}

// Server is safe for concurrent use.
type Server struct {
	srv *httptest.Server

	mu        sync.Mutex
	accounts  map[string]*account // by e-mail
	access    map[string]string   // access token -> e-mail
	refresh   map[string]string   // refresh token -> e-mail
	chats     map[string]*models.Chat
	chatOrder []string
	docs      []*models.Document
	files     map[string][]byte
	fails     map[string][]failure
	calls     map[string]int
	seq       int

	// RotateRefresh makes /auth/refresh return a new refresh token.
	RotateRefresh bool
	// FailRefresh makes /auth/refresh answer 401.
	FailRefresh bool
	// EchoClientID copies clientMessageId into the confirmed user message.
	EchoClientID bool
	// AccessTTL is the lifetime written into issued access tokens.
	AccessTTL time.Duration
}

// NewServer starts a fake backend and stops it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		accounts:      make(map[string]*account),
		access:        make(map[string]string),
		refresh:       make(map[string]string),
		chats:         make(map[string]*models.Chat),
		files:         make(map[string][]byte),
		fails:         make(map[string][]failure),
		calls:         make(map[string]int),
		RotateRefresh: true,
		EchoClientID:  true,
		AccessTTL:     15 * time.Minute,
	}
	s.srv = httptest.NewServer(s.routes())
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the API base, e.g. http://127.0.0.1:port/api.
func (s *Server) URL() string {
	return s.srv.URL + "/api"
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.count)
	r.Use(s.injectFailures)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/register", s.register)
		r.Post("/auth/refresh", s.refreshToken)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/auth/logout", s.logout)
			r.Get("/auth/verify", s.verify)
			r.Get("/user/profile", s.profile)

			r.Post("/chat/message", s.sendMessage)
			r.Get("/chat/history", s.chatHistory)
			r.Get("/chat/stats", s.chatStats)
			r.Get("/chat/{id}", s.getChat)
			r.Delete("/chat/{id}", s.deleteChat)

			r.Get("/documents/history", s.documentHistory)
			r.Get("/documents/{id}", s.getDocument)
			r.Patch("/documents/{id}/favorite", s.toggleFavorite)
			r.Post("/documents/{id}/chat", s.createDocumentChat)
			r.Get("/documents/{id}/chats", s.documentChats)
			r.Get("/documents/{id}/download", s.download)
			r.Post("/legal/analyze-document", s.analyzeDocument)
		})
	})
	return r
}

func routeKey(method, path string) string {
	return method + " " + path
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[routeKey(r.Method, r.URL.Path)]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := routeKey(r.Method, r.URL.Path)

		s.mu.Lock()
		queue := s.fails[key]
		var f *failure
		if len(queue) > 0 {
			f = &queue[0]
			s.fails[key] = queue[1:]
		}
		s.mu.Unlock()

		if f != nil {
			writeError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FailNext makes the next call to method+path (path includes /api) answer
// with status and message. Calls queue up.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := routeKey(method, path)
	s.fails[key] = append(s.fails[key], failure{status: status, message: message})
}

// Calls reports how many requests reached method+path.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[routeKey(method, path)]
}

// TotalCalls reports requests across all routes.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// ExpireAccessTokens invalidates every issued access token; refresh tokens
// stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]string)
}

// RevokeRefreshTokens invalidates every refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]string)
}

// AddUser registers an account directly and returns it.
func (s *Server) AddUser(email, password, first, last string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password, first, last)
}

func (s *Server) addUserLocked(email, password, first, last string) models.User {
	s.seq++
	u := models.User{
		ID:        fmt.Sprintf("user-%d", s.seq),
		FirstName: first,
		LastName:  last,
		Email:     email,
		Role:      "user",
		Language:  "en",
		Stats:     &models.UserStats{},
	}
	s.accounts[strings.ToLower(email)] = &account{user: u, password: password}
	return u
}

// IssueTokens logs the account in without HTTP, for tests that start from
// an authenticated state.
func (s *Server) IssueTokens(email string) models.Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(strings.ToLower(email))
}

func (s *Server) issueLocked(email string) models.Tokens {
	s.seq++
	now := time.Now()
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   email,
		ID:        fmt.Sprintf("a-%d", s.seq),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.AccessTTL)),
	}).SignedString([]byte(signingKey))
	if err != nil {
		panic(err)
	}
	refresh := fmt.Sprintf("refresh-%d", s.seq)

	s.access[access] = email
	s.refresh[refresh] = email
	return models.Tokens{Token: access, RefreshToken: refresh}
}

// AddDocument seeds a document; ID and CreatedAt are filled when empty.
func (s *Server) AddDocument(d models.Document, content []byte) models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if d.ID == "" {
		d.ID = fmt.Sprintf("doc-%d", s.seq)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Hour)
	}
	doc := d
	s.docs = append(s.docs, &doc)
	if content != nil {
		s.files[doc.ID] = content
	}
	return doc
}

// Document returns the server-side copy.
func (s *Server) Document(id string) (models.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.ID == id {
			return *d, true
		}
	}
	return models.Document{}, false
}

// AddChat seeds a conversation.
func (s *Server) AddChat(title string, messages ...models.Message) models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.newChatLocked(title)
	c.Messages = append(c.Messages, messages...)
	return *c
}

func (s *Server) newChatLocked(title string) *models.Chat {
	s.seq++
	c := &models.Chat{ID: fmt.Sprintf("chat-%d", s.seq), Title: title}
	s.chats[c.ID] = c
	s.chatOrder = append(s.chatOrder, c.ID)
	return c
}

// HasChat reports whether the chat still exists server-side.
func (s *Server) HasChat(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chats[id]
	return ok
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
