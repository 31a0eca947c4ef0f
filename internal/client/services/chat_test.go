package services

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/legalassist/internal/client/client"
	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedChat(t *testing.T, e *env) (string, bool) {
	t.Helper()
	idKey, _ := scopedKeys(e.chat.SessionID())
	v, ok, err := e.state.Get(context.Background(), idKey)
	require.NoError(t, err)
	return v, ok
}

func TestSendMessage_NewChatScenario(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	ctx := context.Background()

	e.chat.StartNewChat(ctx)
	require.Empty(t, e.chat.Snapshot().CurrentChatID)

	res, err := e.chat.SendMessage(ctx, models.MessageInput{Content: "hello"})
	require.NoError(t, err)

	snap := e.chat.Snapshot()
	assert.Equal(t, res.ChatID, snap.CurrentChatID)
	assert.Equal(t, "hello", snap.CurrentChatTitle)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, models.MessageUser, snap.Messages[0].Type)
	assert.Equal(t, "hello", snap.Messages[0].Content)
	assert.Equal(t, models.MessageBot, snap.Messages[1].Type)
	assert.Equal(t, "Answer: hello", snap.Messages[1].Content)
	assert.False(t, snap.IsSending)
	assert.False(t, snap.IsTyping)

	id, ok := storedChat(t, e)
	require.True(t, ok)
	assert.Equal(t, res.ChatID, id)
}

func TestSendMessage_NoDuplicateWhenServerDoesNotEchoClientID(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.srv.EchoClientID = false

	_, err := e.chat.SendMessage(context.Background(), models.MessageInput{Content: "What is a lease?"})
	require.NoError(t, err)

	snap := e.chat.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.True(t, strings.HasPrefix(snap.Messages[0].ID, "msg-"), "server id replaces the provisional one")
	assert.NotEmpty(t, snap.Messages[0].ClientID)
}

func TestSendMessage_ContinuesActiveChat(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	ctx := context.Background()

	first, err := e.chat.SendMessage(ctx, models.MessageInput{Content: "one"})
	require.NoError(t, err)
	second, err := e.chat.SendMessage(ctx, models.MessageInput{Content: "two"})
	require.NoError(t, err)

	assert.Equal(t, first.ChatID, second.ChatID)
	assert.Len(t, e.chat.Snapshot().Messages, 4)
}

func TestSendMessage_FailureAppendsInlineError(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.srv.FailNext(http.MethodPost, "/api/chat/message", http.StatusInternalServerError, "model overloaded")

	_, err := e.chat.SendMessage(context.Background(), models.MessageInput{Content: "hi"})
	require.ErrorIs(t, err, client.ErrUnavailable)

	snap := e.chat.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "hi", snap.Messages[0].Content)
	last := snap.Messages[1]
	assert.True(t, last.IsError)
	assert.Equal(t, models.MessageBot, last.Type)
	assert.Equal(t, "Sorry, there was an error: model overloaded", last.Content)
	assert.Equal(t, "model overloaded", snap.LastError)
	assert.False(t, snap.IsSending)
}

func TestSendMessage_EmptyContentRejectedLocally(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	before := e.srv.TotalCalls()

	_, err := e.chat.SendMessage(context.Background(), models.MessageInput{Content: "   "})
	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, before, e.srv.TotalCalls())
	assert.Empty(t, e.chat.Snapshot().Messages)
}

func TestSessionID_GeneratedOnce(t *testing.T) {
	e := newEnv(t)
	id := e.chat.SessionID()
	assert.True(t, strings.HasPrefix(id, "session-"))
	assert.Equal(t, id, e.chat.SessionID())

	e.chat.ClearChat(context.Background())
	assert.NotEqual(t, id, e.chat.SessionID())
}

func TestMergeMessage(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	provisional := models.Message{ID: "p1", ClientID: "p1", Type: models.MessageUser, Content: "draft", Timestamp: ts,
		Files: []models.Attachment{{Name: "a.pdf"}}}
	bot := models.Message{ID: "b0", Type: models.MessageBot, Content: "earlier"}

	tests := []struct {
		name      string
		list      []models.Message
		provID    string
		confirmed models.Message
		wantLen   int
		wantAt    int
		wantID    string
	}{
		{
			name:      "match by correlation id keeps position",
			list:      []models.Message{provisional, bot},
			provID:    "p1",
			confirmed: models.Message{ID: "s1", Type: models.MessageUser, Content: "final"},
			wantLen:   2, wantAt: 0, wantID: "s1",
		},
		{
			name:      "match by echoed client id",
			list:      []models.Message{bot, provisional},
			confirmed: models.Message{ID: "s1", ClientID: "p1", Type: models.MessageUser, Content: "final"},
			wantLen:   2, wantAt: 1, wantID: "s1",
		},
		{
			name:      "match by server id",
			list:      []models.Message{{ID: "s1", Content: "old"}},
			confirmed: models.Message{ID: "s1", Content: "new"},
			wantLen:   1, wantAt: 0, wantID: "s1",
		},
		{
			name:      "append when absent",
			list:      []models.Message{bot},
			provID:    "missing",
			confirmed: models.Message{ID: "s1", Content: "new"},
			wantLen:   2, wantAt: 1, wantID: "s1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := append([]models.Message(nil), tt.list...)

			got := MergeMessage(tt.list, tt.provID, tt.confirmed)

			require.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantID, got[tt.wantAt].ID)
			assert.Equal(t, tt.confirmed.Content, got[tt.wantAt].Content)
			assert.Equal(t, orig, tt.list, "input is not modified")
		})
	}

	t.Run("provisional fields fill gaps", func(t *testing.T) {
		got := MergeMessage([]models.Message{provisional}, "p1", models.Message{ID: "s1", Content: "final"})
		require.Len(t, got, 1)
		assert.Equal(t, "p1", got[0].ClientID)
		assert.Equal(t, ts, got[0].Timestamp)
		assert.Equal(t, provisional.Files, got[0].Files)
		assert.Equal(t, models.MessageUser, got[0].Type)
	})
}

func TestLoadChatHistory_ReplaceAndAppend(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		e.srv.AddChat("chat")
	}

	snap := e.chat.Snapshot()
	assert.Zero(t, snap.HistoryPage)
	assert.True(t, snap.HasMoreHistory)

	require.NoError(t, e.chat.LoadChatHistory(ctx, 1, 20, false))
	snap = e.chat.Snapshot()
	assert.Len(t, snap.History, 20)
	assert.True(t, snap.HasMoreHistory)
	assert.Equal(t, 1, snap.HistoryPage)

	require.NoError(t, e.chat.LoadMoreChatHistory(ctx))
	snap = e.chat.Snapshot()
	assert.Len(t, snap.History, 25)
	assert.False(t, snap.HasMoreHistory)
	assert.Equal(t, 2, snap.HistoryPage)

	require.NoError(t, e.chat.LoadChatHistory(ctx, 1, 10, false))
	assert.Len(t, e.chat.Snapshot().History, 10)
}

func TestLoadChatHistory_FailureKeepsList(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	ctx := context.Background()
	e.srv.AddChat("kept")
	require.NoError(t, e.chat.LoadChatHistory(ctx, 1, 20, false))

	e.srv.FailNext(http.MethodGet, "/api/chat/history", http.StatusBadGateway, "")
	require.Error(t, e.chat.LoadMoreChatHistory(ctx))

	snap := e.chat.Snapshot()
	assert.Len(t, snap.History, 1)
	assert.Equal(t, "Failed to load more chat history", snap.LastError)
	assert.False(t, snap.IsLoadingHistory)
}

func TestLoadChat_ReplacesTranscript(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	ctx := context.Background()

	_, err := e.chat.SendMessage(ctx, models.MessageInput{Content: "current"})
	require.NoError(t, err)

	other := e.srv.AddChat("Tenancy",
		models.Message{ID: "m1", Type: models.MessageUser, Content: "q"},
		models.Message{ID: "m2", Type: models.MessageBot, Content: "a"},
		models.Message{ID: "m3", Type: models.MessageUser, Content: "q2"},
	)

	require.NoError(t, e.chat.LoadChat(ctx, other.ID))

	snap := e.chat.Snapshot()
	assert.Equal(t, other.ID, snap.CurrentChatID)
	assert.Equal(t, "Tenancy", snap.CurrentChatTitle)
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{snap.Messages[0].ID, snap.Messages[1].ID, snap.Messages[2].ID})

	id, _ := storedChat(t, e)
	assert.Equal(t, other.ID, id)
}

func TestLoadChat_NotFound(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	err := e.chat.LoadChat(context.Background(), "nope")
	require.ErrorIs(t, err, client.ErrNotFound)
	assert.Equal(t, "Chat not found", e.chat.Snapshot().LastError)
}

func TestDeleteChat_ActiveChatResets(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	ctx := context.Background()

	keep := e.srv.AddChat("keep")
	res, err := e.chat.SendMessage(ctx, models.MessageInput{Content: "doomed"})
	require.NoError(t, err)
	require.NoError(t, e.chat.LoadChatHistory(ctx, 1, 20, false))
	require.Len(t, e.chat.Snapshot().History, 2)

	require.NoError(t, e.chat.DeleteChat(ctx, res.ChatID))

	snap := e.chat.Snapshot()
	require.Len(t, snap.History, 1)
	assert.Equal(t, keep.ID, snap.History[0].ID)
	assert.Empty(t, snap.CurrentChatID)
	assert.Empty(t, snap.Messages)
	assert.False(t, e.srv.HasChat(res.ChatID))

	_, ok := storedChat(t, e)
	assert.False(t, ok)
}

func TestDeleteChat_OtherChatKeepsTranscript(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	ctx := context.Background()

	other := e.srv.AddChat("other")
	_, err := e.chat.SendMessage(ctx, models.MessageInput{Content: "stay"})
	require.NoError(t, err)

	require.NoError(t, e.chat.DeleteChat(ctx, other.ID))
	snap := e.chat.Snapshot()
	assert.NotEmpty(t, snap.CurrentChatID)
	assert.Len(t, snap.Messages, 2)
}

func TestRestoreActiveChat(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ok, err := e.chat.RestoreActiveChat(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	e.chat.SetCurrentChat(ctx, "chat-9", "Employment")

	e.chat.mu.Lock()
	e.chat.chatID, e.chat.chatTitle = "", ""
	e.chat.mu.Unlock()

	ok, err = e.chat.RestoreActiveChat(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "chat-9", e.chat.Snapshot().CurrentChatID)
	assert.Equal(t, "Employment", e.chat.Snapshot().CurrentChatTitle)
}

func TestRestoreActiveChat_NewSessionStartsEmpty(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	ctx := context.Background()

	_, err := e.chat.SendMessage(ctx, models.MessageInput{Content: "hello"})
	require.NoError(t, err)
	_, ok := storedChat(t, e)
	require.True(t, ok)

	// same storage, new process
	next := NewChatStore(e.api, e.state, e.session.log)
	ok, err = next.RestoreActiveChat(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, next.Snapshot().CurrentChatID)
	assert.NotEqual(t, e.chat.SessionID(), next.SessionID())
}

func TestClearChat_DropsKeysOfEndedSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.chat.SetCurrentChat(ctx, "chat-3", "Lease")
	idKey, titleKey := scopedKeys(e.chat.SessionID())

	e.chat.ClearChat(ctx)

	_, ok, err := e.state.Get(ctx, idKey)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = e.state.Get(ctx, titleKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChatStats(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	ctx := context.Background()
	_, err := e.chat.SendMessage(ctx, models.MessageInput{Content: "x"})
	require.NoError(t, err)

	stats, err := e.chat.ChatStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalChats)
	assert.Equal(t, 2, stats.TotalMessages)
	require.NotNil(t, e.chat.Snapshot().Stats)
}
