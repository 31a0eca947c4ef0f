package models

import "time"

type MessageType string

const (
	MessageUser MessageType = "user"
	MessageBot  MessageType = "bot"
)

type Attachment struct {
	Name     string `json:"name"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"type,omitempty"`
}

// Message is one transcript entry. ClientID correlates an optimistic
// entry with the copy echoed back by the server.
type Message struct {
	ID         string       `json:"id"`
	ClientID   string       `json:"clientMessageId,omitempty"`
	Type       MessageType  `json:"type"`
	Content    string       `json:"content"`
	Timestamp  time.Time    `json:"timestamp"`
	IsError    bool         `json:"isError,omitempty"`
	Files      []Attachment `json:"files,omitempty"`
	DocumentID string       `json:"documentId,omitempty"`
}

type ChatSummary struct {
	ID           string    `json:"_id"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"lastMessage,omitempty"`
	MessageCount int       `json:"messageCount,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LastActivity is UpdatedAt, or CreatedAt for never-updated chats.
func (c ChatSummary) LastActivity() time.Time {
	if c.UpdatedAt.IsZero() {
		return c.CreatedAt
	}
	return c.UpdatedAt
}

type Chat struct {
	ID       string    `json:"_id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

type ChatHistoryPage struct {
	Chats   []ChatSummary `json:"chats"`
	HasMore bool          `json:"hasMore"`
}

type ChatStats struct {
	TotalChats    int `json:"totalChats"`
	TotalMessages int `json:"totalMessages"`
	ActiveChats   int `json:"activeChats,omitempty"`
}

type SendMessageRequest struct {
	Message         string `json:"message"`
	Language        string `json:"language"`
	SessionID       string `json:"sessionId"`
	ChatID          string `json:"chatId,omitempty"`
	DocumentID      string `json:"documentId,omitempty"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

type SendMessageResponse struct {
	ChatID      string   `json:"chatId"`
	ChatTitle   string   `json:"chatTitle"`
	UserMessage *Message `json:"userMessage"`
	BotMessage  *Message `json:"botMessage"`
}

// MessageInput is what the view hands to the conversation store.
type MessageInput struct {
	Content    string
	Language   string
	DocumentID string
	Files      []Attachment
}
