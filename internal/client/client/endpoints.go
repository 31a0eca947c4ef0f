package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/legalassist/internal/client/models"
)

func (c *APIClient) Login(ctx context.Context, creds models.Credentials) (*models.AuthResult, error) {
	var res models.AuthResult
	if err := c.do(withAnonymous(ctx), http.MethodPost, "/auth/login", nil, creds, &res, "Login failed"); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *APIClient) Register(ctx context.Context, reg models.Registration) (*models.AuthResult, error) {
	var res models.AuthResult
	if err := c.do(withAnonymous(ctx), http.MethodPost, "/auth/register", nil, reg, &res, "Registration failed"); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *APIClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil, "Logout failed")
}

func (c *APIClient) Verify(ctx context.Context) (*models.User, error) {
	var res struct {
		User *models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/verify", nil, nil, &res, "Token verification failed"); err != nil {
		return nil, err
	}
	return res.User, nil
}

// Refresh exchanges a refresh token for a new pair. The returned
// RefreshToken is empty when the server did not rotate it.
func (c *APIClient) Refresh(ctx context.Context, refreshToken string) (models.Tokens, error) {
	var res models.Tokens
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.do(withAnonymous(ctx), http.MethodPost, "/auth/refresh", nil, body, &res, "Token refresh failed"); err != nil {
		return models.Tokens{}, err
	}
	if res.Token == "" {
		return models.Tokens{}, &APIError{StatusCode: http.StatusUnauthorized, Message: "Token refresh failed"}
	}
	return res, nil
}

func (c *APIClient) Profile(ctx context.Context) (*models.User, error) {
	var res struct {
		User *models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/user/profile", nil, nil, &res, "Failed to fetch profile"); err != nil {
		return nil, err
	}
	return res.User, nil
}

func (c *APIClient) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	var res models.SendMessageResponse
	if err := c.do(ctx, http.MethodPost, "/chat/message", nil, req, &res, "Failed to send message"); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *APIClient) ChatHistory(ctx context.Context, page, limit int) (*models.ChatHistoryPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var res models.ChatHistoryPage
	if err := c.do(ctx, http.MethodGet, "/chat/history", q, nil, &res, "Failed to load chat history"); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *APIClient) GetChat(ctx context.Context, chatID, sessionID string) (*models.Chat, error) {
	q := url.Values{}
	if sessionID != "" {
		q.Set("sessionId", sessionID)
	}

	var res models.Chat
	if err := c.do(ctx, http.MethodGet, "/chat/"+pathID(chatID), q, nil, &res, "Failed to load chat"); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *APIClient) DeleteChat(ctx context.Context, chatID, sessionID string) error {
	q := url.Values{}
	if sessionID != "" {
		q.Set("sessionId", sessionID)
	}
	return c.do(ctx, http.MethodDelete, "/chat/"+pathID(chatID), q, nil, nil, "Failed to delete chat")
}

func (c *APIClient) ChatStats(ctx context.Context) (*models.ChatStats, error) {
	var res models.ChatStats
	if err := c.do(ctx, http.MethodGet, "/chat/stats", nil, nil, &res, "Failed to fetch chat stats"); err != nil {
		return nil, err
	}
	return &res, nil
}

func historyParams(q models.HistoryQuery) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.SortBy != "" {
		v.Set("sortBy", string(q.SortBy))
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", string(q.SortOrder))
	}
	if q.DocumentType != "" {
		v.Set("documentType", q.DocumentType)
	}
	if q.FavoritesOnly {
		v.Set("favorites", "true")
	}
	return v
}

func (c *APIClient) DocumentHistory(ctx context.Context, q models.HistoryQuery) (*models.DocumentPage, error) {
	var res models.DocumentPage
	if err := c.do(ctx, http.MethodGet, "/documents/history", historyParams(q), nil, &res, "Failed to load document history"); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *APIClient) ToggleFavorite(ctx context.Context, documentID string) error {
	return c.do(ctx, http.MethodPatch, "/documents/"+pathID(documentID)+"/favorite", nil, nil, nil, "Failed to toggle favorite")
}

func (c *APIClient) CreateDocumentChat(ctx context.Context, documentID string) (string, error) {
	var res struct {
		ChatID string `json:"chatId"`
	}
	if err := c.do(ctx, http.MethodPost, "/documents/"+pathID(documentID)+"/chat", nil, nil, &res, "Failed to create document chat"); err != nil {
		return "", err
	}
	return res.ChatID, nil
}

func (c *APIClient) DocumentChats(ctx context.Context, documentID string) (*models.DocumentChats, error) {
	var res models.DocumentChats
	if err := c.do(ctx, http.MethodGet, "/documents/"+pathID(documentID)+"/chats", nil, nil, &res, "Failed to load document chats"); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *APIClient) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	var res struct {
		Document *models.Document `json:"document"`
	}
	if err := c.do(ctx, http.MethodGet, "/documents/"+pathID(documentID), nil, nil, &res, "Failed to load document"); err != nil {
		return nil, err
	}
	return res.Document, nil
}

// UploadDocument posts the file for analysis as multipart/form-data with
// the fields document, language and analysisType. The body is buffered so
// the request can be replayed after a token refresh.
func (c *APIClient) UploadDocument(ctx context.Context, filename string, content io.Reader, language string, analysisType models.AnalysisType) (*models.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return nil, err
		}
	}
	if analysisType != "" {
		if err := mw.WriteField("analysisType", string(analysisType)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/legal/analyze-document", nil), bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}

	var res struct {
		Document *models.Document `json:"document"`
	}
	if err := c.decode(ctx, resp, &res, "Failed to upload document"); err != nil {
		return nil, err
	}
	return res.Document, nil
}

// DownloadDocument streams the original file. The caller closes the reader.
func (c *APIClient) DownloadDocument(ctx context.Context, documentID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/documents/"+pathID(documentID)+"/download", nil), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.decode(ctx, resp, nil, "Failed to download document")
	}
	return resp.Body, nil
}

// DocumentOpenURL is the browser link for viewing a document inline.
func (c *APIClient) DocumentOpenURL(documentID string) string {
	return c.endpoint("/documents/"+pathID(documentID)+"/open", nil)
}
