package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/go-chi/chi/v5"
)

type ctxKey struct{}

func emailFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Access token required")
			return
		}

		s.mu.Lock()
		email, ok := s.access[token]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Token expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, email)))
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[strings.ToLower(creds.Email)]
	if !ok || acc.password != creds.Password {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	tokens := s.issueLocked(strings.ToLower(creds.Email))
	user := acc.user
	writeJSON(w, http.StatusOK, models.AuthResult{Token: tokens.Token, RefreshToken: tokens.RefreshToken, User: &user})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var reg struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Language  string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[strings.ToLower(reg.Email)]; exists {
		writeError(w, http.StatusConflict, "User already exists")
		return
	}
	user := s.addUserLocked(reg.Email, reg.Password, reg.FirstName, reg.LastName)
	tokens := s.issueLocked(strings.ToLower(reg.Email))
	writeJSON(w, http.StatusCreated, models.AuthResult{Token: tokens.Token, RefreshToken: tokens.RefreshToken, User: &user})
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.refresh[body.RefreshToken]
	if !ok || s.FailRefresh {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	tokens := s.issueLocked(email)
	if !s.RotateRefresh {
		delete(s.refresh, tokens.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]string{"token": tokens.Token})
		return
	}
	delete(s.refresh, body.RefreshToken)
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.access, token)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) currentUser(r *http.Request) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[emailFrom(r.Context())]
	if !ok {
		return models.User{}, false
	}
	u := acc.user
	stats := models.UserStats{TotalDocuments: len(s.docs), TotalChats: len(s.chats)}
	for _, c := range s.chats {
		for _, m := range c.Messages {
			if m.Type == models.MessageUser {
				stats.TotalQueries++
			}
		}
	}
	u.Stats = &stats
	return u, true
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[req.ChatID]
	if req.ChatID != "" && !ok {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	if !ok {
		title := req.Message
		if len(title) > 30 {
			title = title[:30]
		}
		chat = s.newChatLocked(title)
	}

	now := time.Now().UTC()
	s.seq++
	user := models.Message{
		ID:         fmt.Sprintf("msg-%d", s.seq),
		Type:       models.MessageUser,
		Content:    req.Message,
		Timestamp:  now,
		DocumentID: req.DocumentID,
	}
	if s.EchoClientID {
		user.ClientID = req.ClientMessageID
	}
	s.seq++
	bot := models.Message{
		ID:        fmt.Sprintf("msg-%d", s.seq),
		Type:      models.MessageBot,
		Content:   "Answer: " + req.Message,
		Timestamp: now,
	}
	chat.Messages = append(chat.Messages, user, bot)

	writeJSON(w, http.StatusOK, models.SendMessageResponse{
		ChatID:      chat.ID,
		ChatTitle:   chat.Title,
		UserMessage: &user,
		BotMessage:  &bot,
	})
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	page := intParam(r, "page", 1)
	limit := intParam(r, "limit", 20)

	s.mu.Lock()
	defer s.mu.Unlock()

	// newest first
	all := make([]models.ChatSummary, 0, len(s.chatOrder))
	for i := len(s.chatOrder) - 1; i >= 0; i-- {
		c, ok := s.chats[s.chatOrder[i]]
		if !ok {
			continue
		}
		sum := models.ChatSummary{ID: c.ID, Title: c.Title, MessageCount: len(c.Messages)}
		if n := len(c.Messages); n > 0 {
			sum.LastMessage = c.Messages[n-1].Content
		}
		all = append(all, sum)
	}

	start := (page - 1) * limit
	end := min(start+limit, len(all))
	chats := []models.ChatSummary{}
	if start < len(all) {
		chats = all[start:end]
	}
	writeJSON(w, http.StatusOK, models.ChatHistoryPage{Chats: chats, HasMore: end < len(all)})
}

func (s *Server) chatStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.ChatStats{TotalChats: len(s.chats)}
	for _, c := range s.chats {
		stats.TotalMessages += len(c.Messages)
		if len(c.Messages) > 0 {
			stats.ActiveChats++
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[id]; !ok {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	delete(s.chats, id)
	writeJSON(w, http.StatusOK, map[string]string{"chatId": id})
}

func lessDocs(a, b *models.Document, by models.SortField) bool {
	switch by {
	case models.SortOriginalName:
		return strings.ToLower(a.OriginalName) < strings.ToLower(b.OriginalName)
	case models.SortTotalInteractions:
		return a.Usage.TotalInteractions < b.Usage.TotalInteractions
	case models.SortLastUsed:
		var at, bt time.Time
		if a.Usage.LastUsed != nil {
			at = *a.Usage.LastUsed
		}
		if b.Usage.LastUsed != nil {
			bt = *b.Usage.LastUsed
		}
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func (s *Server) documentHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(r, "page", 1)
	limit := intParam(r, "limit", 20)
	sortBy := models.SortField(q.Get("sortBy"))
	desc := q.Get("sortOrder") != string(models.SortAsc)
	docType := q.Get("documentType")
	favorites := q.Get("favorites") == "true"

	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]*models.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if docType != "" && d.DocumentType != docType {
			continue
		}
		if favorites && !d.IsFavorite {
			continue
		}
		filtered = append(filtered, d)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if desc {
			return lessDocs(filtered[j], filtered[i], sortBy)
		}
		return lessDocs(filtered[i], filtered[j], sortBy)
	})

	total := len(filtered)
	totalPages := (total + limit - 1) / limit
	start := (page - 1) * limit
	end := min(start+limit, total)

	docs := []models.Document{}
	for i := start; i < end; i++ {
		docs = append(docs, *filtered[i])
	}

	writeJSON(w, http.StatusOK, models.DocumentPage{
		Documents: docs,
		Pagination: models.Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalCount:  total,
			HasNext:     page < totalPages,
			HasPrev:     page > 1,
		},
	})
}

func (s *Server) findDocLocked(id string) *models.Document {
	for _, d := range s.docs {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.findDocLocked(chi.URLParam(r, "id"))
	if d == nil {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	d.Usage.ViewCount++
	writeJSON(w, http.StatusOK, map[string]any{"document": d})
}

func (s *Server) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.findDocLocked(chi.URLParam(r, "id"))
	if d == nil {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	d.IsFavorite = !d.IsFavorite
	writeJSON(w, http.StatusOK, map[string]any{"isFavorite": d.IsFavorite})
}

func (s *Server) createDocumentChat(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.findDocLocked(chi.URLParam(r, "id"))
	if d == nil {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	c := s.newChatLocked("Chat about " + d.OriginalName)
	d.Usage.ChatCount++
	d.Usage.TotalInteractions++
	writeJSON(w, http.StatusCreated, map[string]string{"chatId": c.ID})
}

func (s *Server) documentChats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.findDocLocked(chi.URLParam(r, "id"))
	if d == nil {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	prefix := "Chat about " + d.OriginalName
	chats := []models.ChatSummary{}
	for _, id := range s.chatOrder {
		if c, ok := s.chats[id]; ok && c.Title == prefix {
			chats = append(chats, models.ChatSummary{ID: c.ID, Title: c.Title, MessageCount: len(c.Messages)})
		}
	}
	doc := *d
	writeJSON(w, http.StatusOK, models.DocumentChats{Document: &doc, Chats: chats})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d := s.findDocLocked(chi.URLParam(r, "id"))
	var content []byte
	if d != nil {
		content = s.files[d.ID]
	}
	s.mu.Unlock()

	if d == nil || content == nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.OriginalName))
	_, _ = w.Write(content)
}

func (s *Server) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	f, hdr, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No document uploaded")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unreadable document")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	doc := &models.Document{
		ID:           fmt.Sprintf("doc-%d", s.seq),
		OriginalName: hdr.Filename,
		DocumentType: "contract",
		MimeType:     hdr.Header.Get("Content-Type"),
		FileSize:     int64(len(content)),
		Language:     r.FormValue("language"),
		Tags:         []string{r.FormValue("analysisType")},
		CreatedAt:    time.Now().UTC(),
		Analysis: &models.Analysis{
			Summary:   "Analysis of " + hdr.Filename,
			KeyPoints: []string{"parties identified"},
			Risks:     []models.Risk{{Category: "liability", Description: "uncapped liability", Level: "medium"}},
		},
	}
	s.docs = append(s.docs, doc)
	s.files[doc.ID] = content
	writeJSON(w, http.StatusCreated, map[string]any{"document": doc})
}
