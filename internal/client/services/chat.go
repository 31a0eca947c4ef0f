package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/legalassist/internal/client/client"
	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/dmitrijs2005/legalassist/internal/client/repositories/sessionstate"
	"github.com/dmitrijs2005/legalassist/internal/logging"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	defaultLanguage  = "en"
	historyPageLimit = 20
)

// ChatSnapshot is a copy of the conversation store.
type ChatSnapshot struct {
	SessionID        string
	Messages         []models.Message
	CurrentChatID    string
	CurrentChatTitle string
	History          []models.ChatSummary
	HistoryPage      int
	HasMoreHistory   bool
	Stats            *models.ChatStats
	IsLoading        bool
	IsLoadingHistory bool
	IsSending        bool
	IsTyping         bool
	LastError        string
}

type ChatStore struct {
	api   client.ChatAPI
	state sessionstate.Store
	log   logging.Logger
	newID func() string

	mu          sync.Mutex
	sessionID   string
	messages    []models.Message
	chatID      string
	chatTitle   string
	history     []models.ChatSummary
	historyPage int
	hasMore     bool
	stats       *models.ChatStats
	loading     bool
	loadingHist bool
	sending     int
	lastErr     string
}

func NewChatStore(api client.ChatAPI, state sessionstate.Store, log logging.Logger) *ChatStore {
	return &ChatStore{
		api:     api,
		state:   state,
		log:     log.With("component", "chat"),
		newID:   uuid.NewString,
		hasMore: true,
	}
}

// SessionID returns the per-process chat session id, creating it on first
// use.
func (c *ChatStore) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionIDLocked()
}

func (c *ChatStore) sessionIDLocked() string {
	if c.sessionID == "" {
		c.sessionID = "session-" + c.newID()
	}
	return c.sessionID
}

func (c *ChatStore) Snapshot() ChatSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := ChatSnapshot{
		SessionID:        c.sessionID,
		Messages:         append([]models.Message(nil), c.messages...),
		CurrentChatID:    c.chatID,
		CurrentChatTitle: c.chatTitle,
		History:          append([]models.ChatSummary(nil), c.history...),
		HistoryPage:      c.historyPage,
		HasMoreHistory:   c.hasMore,
		IsLoading:        c.loading,
		IsLoadingHistory: c.loadingHist,
		IsSending:        c.sending > 0,
		IsTyping:         c.sending > 0,
		LastError:        c.lastErr,
	}
	if c.stats != nil {
		st := *c.stats
		snap.Stats = &st
	}
	return snap
}

// AddUserMessage appends a provisional user message and returns it. Its
// ID doubles as the client correlation id sent to the server.
func (c *ChatStore) AddUserMessage(in models.MessageInput) models.Message {
	id := c.newID()
	m := models.Message{
		ID:         id,
		ClientID:   id,
		Type:       models.MessageUser,
		Content:    in.Content,
		Timestamp:  time.Now().UTC(),
		Files:      in.Files,
		DocumentID: in.DocumentID,
	}

	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
	return m
}

// MergeMessage reconciles a server-confirmed message with the provisional
// entry it answers. The entry is found by server id or by correlation id;
// confirmed fields win and the entry keeps its position. When no entry
// matches, confirmed is appended. list is not modified.
func MergeMessage(list []models.Message, provisionalID string, confirmed models.Message) []models.Message {
	out := append([]models.Message(nil), list...)

	for i, m := range out {
		match := (confirmed.ID != "" && m.ID == confirmed.ID) ||
			(provisionalID != "" && (m.ID == provisionalID || m.ClientID == provisionalID)) ||
			(confirmed.ClientID != "" && m.ClientID == confirmed.ClientID)
		if !match {
			continue
		}

		merged := confirmed
		if merged.ClientID == "" {
			merged.ClientID = m.ClientID
		}
		if merged.Type == "" {
			merged.Type = m.Type
		}
		if len(merged.Files) == 0 {
			merged.Files = m.Files
		}
		if merged.Timestamp.IsZero() {
			merged.Timestamp = m.Timestamp
		}
		out[i] = merged
		return out
	}

	if confirmed.Type == "" {
		confirmed.Type = models.MessageUser
	}
	return append(out, confirmed)
}

// SendMessage posts in to the active conversation, or starts one. The user
// message appears in the transcript immediately. On failure an error entry
// is appended to the transcript and the error is returned.
func (c *ChatStore) SendMessage(ctx context.Context, in models.MessageInput) (*models.SendMessageResponse, error) {
	if err := validation.Validate(strings.TrimSpace(in.Content), validation.Required); err != nil {
		return nil, ErrEmptyMessage
	}
	if in.Language == "" {
		in.Language = defaultLanguage
	}

	provisional := c.AddUserMessage(in)

	c.mu.Lock()
	c.sending++
	c.lastErr = ""
	req := models.SendMessageRequest{
		Message:         in.Content,
		Language:        in.Language,
		SessionID:       c.sessionIDLocked(),
		ChatID:          c.chatID,
		DocumentID:      in.DocumentID,
		ClientMessageID: provisional.ID,
	}
	c.mu.Unlock()

	resp, err := c.api.SendMessage(ctx, req)

	c.mu.Lock()
	c.sending--
	if err != nil {
		msg := client.Message(err, "Failed to send message")
		c.lastErr = msg
		c.messages = append(c.messages, models.Message{
			ID:        "error-" + c.newID(),
			Type:      models.MessageBot,
			Content:   "Sorry, there was an error: " + msg,
			Timestamp: time.Now().UTC(),
			IsError:   true,
		})
		c.mu.Unlock()
		c.log.Warn(ctx, "send message failed", "chat_id", req.ChatID, "error", err)
		return nil, err
	}

	if resp.UserMessage != nil {
		confirmed := *resp.UserMessage
		confirmed.Type = models.MessageUser
		c.messages = MergeMessage(c.messages, provisional.ID, confirmed)
	}
	if resp.BotMessage != nil {
		bot := *resp.BotMessage
		bot.Type = models.MessageBot
		c.messages = append(c.messages, bot)
	}
	if resp.ChatID != "" {
		c.chatID = resp.ChatID
	}
	if resp.ChatTitle != "" {
		c.chatTitle = resp.ChatTitle
	}
	chatID, title := c.chatID, c.chatTitle
	c.mu.Unlock()

	c.rememberChat(ctx, chatID, title)
	return resp, nil
}

// chatKeys returns the session storage keys for the active conversation.
// They are prefixed with the session id, so a new session never sees the
// conversation of an earlier one even when the storage outlives it.
func (c *ChatStore) chatKeys() (idKey, titleKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return scopedKeys(c.sessionIDLocked())
}

func scopedKeys(sessionID string) (idKey, titleKey string) {
	return sessionID + ":" + sessionstate.KeyChatID, sessionID + ":" + sessionstate.KeyChatTitle
}

// rememberChat mirrors the active conversation into session storage.
func (c *ChatStore) rememberChat(ctx context.Context, id, title string) {
	if id == "" {
		return
	}
	idKey, titleKey := c.chatKeys()
	if err := c.state.Set(ctx, idKey, id); err != nil {
		c.log.Warn(ctx, "failed to store active chat", "error", err)
		return
	}
	if err := c.state.Set(ctx, titleKey, title); err != nil {
		c.log.Warn(ctx, "failed to store active chat title", "error", err)
	}
}

func (c *ChatStore) forgetChat(ctx context.Context) {
	idKey, titleKey := c.chatKeys()
	c.dropKeys(ctx, idKey, titleKey)
}

func (c *ChatStore) dropKeys(ctx context.Context, keys ...string) {
	if err := c.state.Delete(ctx, keys...); err != nil {
		c.log.Warn(ctx, "failed to clear active chat", "error", err)
	}
}

// LoadChatHistory fetches one page of conversation summaries, appending to
// or replacing the cached list.
func (c *ChatStore) LoadChatHistory(ctx context.Context, page, limit int, appendPage bool) error {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = historyPageLimit
	}
	return c.loadHistory(ctx, page, limit, appendPage, "Failed to load chat history")
}

// LoadMoreChatHistory appends the page after the last one loaded.
func (c *ChatStore) LoadMoreChatHistory(ctx context.Context) error {
	c.mu.Lock()
	next := c.historyPage + 1
	c.mu.Unlock()
	return c.loadHistory(ctx, next, historyPageLimit, true, "Failed to load more chat history")
}

func (c *ChatStore) loadHistory(ctx context.Context, page, limit int, appendPage bool, fallback string) error {
	c.mu.Lock()
	c.loadingHist = true
	c.lastErr = ""
	c.mu.Unlock()

	res, err := c.api.ChatHistory(ctx, page, limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadingHist = false
	if err != nil {
		c.lastErr = client.Message(err, fallback)
		return err
	}

	if appendPage {
		c.history = append(c.history, res.Chats...)
	} else {
		c.history = append([]models.ChatSummary(nil), res.Chats...)
	}
	c.hasMore = res.HasMore
	c.historyPage = page
	return nil
}

// LoadChat makes chatID the active conversation, replacing the transcript.
func (c *ChatStore) LoadChat(ctx context.Context, chatID string) error {
	c.mu.Lock()
	c.loading = true
	c.lastErr = ""
	sessionID := c.sessionIDLocked()
	c.mu.Unlock()

	chat, err := c.api.GetChat(ctx, chatID, sessionID)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.lastErr = client.Message(err, "Failed to load chat")
		c.mu.Unlock()
		return err
	}
	c.chatID = chat.ID
	c.chatTitle = chat.Title
	c.messages = append([]models.Message(nil), chat.Messages...)
	c.mu.Unlock()

	c.rememberChat(ctx, chat.ID, chat.Title)
	c.log.Debug(ctx, "chat loaded", "chat_id", chat.ID, "messages", len(chat.Messages))
	return nil
}

// DeleteChat removes a conversation on the server and from the cached
// list. Deleting the active conversation also resets the transcript.
func (c *ChatStore) DeleteChat(ctx context.Context, chatID string) error {
	c.mu.Lock()
	c.loading = true
	sessionID := c.sessionIDLocked()
	c.mu.Unlock()

	err := c.api.DeleteChat(ctx, chatID, sessionID)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.lastErr = client.Message(err, "Failed to delete chat")
		c.mu.Unlock()
		return err
	}

	kept := c.history[:0:0]
	for _, h := range c.history {
		if h.ID != chatID {
			kept = append(kept, h)
		}
	}
	c.history = kept

	wasActive := c.chatID == chatID
	if wasActive {
		c.chatID = ""
		c.chatTitle = ""
		c.messages = nil
	}
	c.mu.Unlock()

	if wasActive {
		c.forgetChat(ctx)
	}
	return nil
}

// StartNewChat resets the active conversation locally; the server assigns
// a new id with the next message.
func (c *ChatStore) StartNewChat(ctx context.Context) {
	c.mu.Lock()
	c.messages = nil
	c.chatID = ""
	c.chatTitle = ""
	c.lastErr = ""
	c.mu.Unlock()

	c.forgetChat(ctx)
}

func (c *ChatStore) ChatStats(ctx context.Context) (*models.ChatStats, error) {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	stats, err := c.api.ChatStats(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.lastErr = client.Message(err, "Failed to fetch chat stats")
		return nil, err
	}
	c.stats = stats
	st := *stats
	return &st, nil
}

func (c *ChatStore) SetCurrentChat(ctx context.Context, chatID, title string) {
	c.mu.Lock()
	c.chatID = chatID
	c.chatTitle = title
	c.mu.Unlock()

	c.rememberChat(ctx, chatID, title)
}

// ClearChat drops everything the store holds, including the session id.
func (c *ChatStore) ClearChat(ctx context.Context) {
	c.mu.Lock()
	c.messages = nil
	c.history = nil
	c.chatID = ""
	c.chatTitle = ""
	c.lastErr = ""
	idKey, titleKey := scopedKeys(c.sessionIDLocked())
	c.sessionID = ""
	c.stats = nil
	c.mu.Unlock()

	c.dropKeys(ctx, idKey, titleKey)
}

// RestoreActiveChat picks up the conversation id and title this session
// kept in session storage. It reports whether one was found.
func (c *ChatStore) RestoreActiveChat(ctx context.Context) (bool, error) {
	idKey, titleKey := c.chatKeys()
	id, ok, err := c.state.Get(ctx, idKey)
	if err != nil {
		return false, err
	}
	if !ok || id == "" {
		return false, nil
	}
	title, _, err := c.state.Get(ctx, titleKey)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.chatID = id
	c.chatTitle = title
	c.mu.Unlock()
	return true, nil
}

func (c *ChatStore) ClearError() {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()
}
