package client

import (
	"context"
	"io"

	"github.com/dmitrijs2005/legalassist/internal/client/models"
)

// TokenSource owns the token pair the transport attaches and refreshes.
type TokenSource interface {
	AccessToken() string
	RefreshToken() string
	UpdateTokens(ctx context.Context, tokens models.Tokens) error
	// Expire clears the session after an unrecoverable auth failure.
	Expire(ctx context.Context, cause error)
}

type AuthAPI interface {
	Login(ctx context.Context, creds models.Credentials) (*models.AuthResult, error)
	Register(ctx context.Context, reg models.Registration) (*models.AuthResult, error)
	Logout(ctx context.Context) error
	Verify(ctx context.Context) (*models.User, error)
	Refresh(ctx context.Context, refreshToken string) (models.Tokens, error)
	Profile(ctx context.Context) (*models.User, error)
}

type ChatAPI interface {
	SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.SendMessageResponse, error)
	ChatHistory(ctx context.Context, page, limit int) (*models.ChatHistoryPage, error)
	GetChat(ctx context.Context, chatID, sessionID string) (*models.Chat, error)
	DeleteChat(ctx context.Context, chatID, sessionID string) error
	ChatStats(ctx context.Context) (*models.ChatStats, error)
}

type DocumentAPI interface {
	DocumentHistory(ctx context.Context, q models.HistoryQuery) (*models.DocumentPage, error)
	ToggleFavorite(ctx context.Context, documentID string) error
	CreateDocumentChat(ctx context.Context, documentID string) (string, error)
	DocumentChats(ctx context.Context, documentID string) (*models.DocumentChats, error)
	GetDocument(ctx context.Context, documentID string) (*models.Document, error)
	UploadDocument(ctx context.Context, filename string, content io.Reader, language string, analysisType models.AnalysisType) (*models.Document, error)
	DownloadDocument(ctx context.Context, documentID string) (io.ReadCloser, error)
	DocumentOpenURL(documentID string) string
}

// API is everything the CLI needs from the backend.
type API interface {
	AuthAPI
	ChatAPI
	DocumentAPI
	SetTokenSource(ts TokenSource)
}
