package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dmitrijs2005/legalassist/internal/client/client"
	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/dmitrijs2005/legalassist/internal/filex"
	"github.com/dmitrijs2005/legalassist/internal/logging"
)

// DocumentSnapshot is a copy of the document store.
type DocumentSnapshot struct {
	Documents     []models.Document
	Pagination    models.Pagination
	Query         models.HistoryQuery
	Selected      *models.Document
	SelectedChats []models.ChatSummary
	SearchQuery   string
	ViewMode      models.ViewMode
	Loading       bool
	Uploading     bool
	LoadingChats  bool
	LastError     string
}

type DocumentStore struct {
	api client.DocumentAPI
	log logging.Logger

	mu            sync.Mutex
	docs          []models.Document
	page          models.Pagination
	query         models.HistoryQuery
	selected      *models.Document
	selectedChats []models.ChatSummary
	search        string
	viewMode      models.ViewMode
	loading       bool
	uploading     bool
	loadingChats  bool
	lastErr       string
}

func NewDocumentStore(api client.DocumentAPI, log logging.Logger) *DocumentStore {
	return &DocumentStore{
		api:      api,
		log:      log.With("component", "documents"),
		query:    models.DefaultHistoryQuery(),
		page:     models.Pagination{CurrentPage: 1},
		viewMode: models.ViewGrid,
	}
}

func cloneDoc(d *models.Document) *models.Document {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func (s *DocumentStore) Snapshot() DocumentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DocumentSnapshot{
		Documents:     append([]models.Document(nil), s.docs...),
		Pagination:    s.page,
		Query:         s.query,
		Selected:      cloneDoc(s.selected),
		SelectedChats: append([]models.ChatSummary(nil), s.selectedChats...),
		SearchQuery:   s.search,
		ViewMode:      s.viewMode,
		Loading:       s.loading,
		Uploading:     s.uploading,
		LoadingChats:  s.loadingChats,
		LastError:     s.lastErr,
	}
}

// Query is the filter and page the next reload will use.
func (s *DocumentStore) Query() models.HistoryQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

func normalizeQuery(q models.HistoryQuery) models.HistoryQuery {
	def := models.DefaultHistoryQuery()
	if q.Page < 1 {
		q.Page = def.Page
	}
	if q.Limit < 1 {
		q.Limit = def.Limit
	}
	if q.SortBy == "" {
		q.SortBy = def.SortBy
	}
	if q.SortOrder == "" {
		q.SortOrder = def.SortOrder
	}
	return q
}

// LoadDocumentHistory fetches a page of documents and replaces the list and
// pagination with the response.
func (s *DocumentStore) LoadDocumentHistory(ctx context.Context, q models.HistoryQuery) error {
	q = normalizeQuery(q)

	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.query = q
	s.mu.Unlock()

	res, err := s.api.DocumentHistory(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = client.Message(err, "Failed to load document history")
		return err
	}
	s.docs = append([]models.Document(nil), res.Documents...)
	s.page = res.Pagination
	return nil
}

// reload re-runs the last query with fn applied to it.
func (s *DocumentStore) reload(ctx context.Context, fn func(q *models.HistoryQuery)) error {
	s.mu.Lock()
	q := s.query
	s.mu.Unlock()

	fn(&q)
	return s.LoadDocumentHistory(ctx, q)
}

// NextPage loads the following page if the last response had one;
// otherwise it does nothing.
func (s *DocumentStore) NextPage(ctx context.Context) error {
	s.mu.Lock()
	hasNext, cur := s.page.HasNext, s.page.CurrentPage
	s.mu.Unlock()
	if !hasNext {
		return nil
	}
	return s.reload(ctx, func(q *models.HistoryQuery) { q.Page = cur + 1 })
}

func (s *DocumentStore) PrevPage(ctx context.Context) error {
	s.mu.Lock()
	hasPrev, cur := s.page.HasPrev, s.page.CurrentPage
	s.mu.Unlock()
	if !hasPrev {
		return nil
	}
	return s.reload(ctx, func(q *models.HistoryQuery) { q.Page = cur - 1 })
}

func (s *DocumentStore) FirstPage(ctx context.Context) error {
	return s.GoToPage(ctx, 1)
}

func (s *DocumentStore) LastPage(ctx context.Context) error {
	s.mu.Lock()
	last := s.page.TotalPages
	s.mu.Unlock()
	return s.GoToPage(ctx, max(last, 1))
}

func (s *DocumentStore) GoToPage(ctx context.Context, page int) error {
	return s.reload(ctx, func(q *models.HistoryQuery) { q.Page = page })
}

// Filter and sort changes always restart from page 1.

func (s *DocumentStore) ChangeSortBy(ctx context.Context, by models.SortField) error {
	return s.reload(ctx, func(q *models.HistoryQuery) { q.SortBy, q.Page = by, 1 })
}

func (s *DocumentStore) ChangeSortOrder(ctx context.Context, order models.SortOrder) error {
	return s.reload(ctx, func(q *models.HistoryQuery) { q.SortOrder, q.Page = order, 1 })
}

func (s *DocumentStore) ToggleSortOrder(ctx context.Context) error {
	return s.reload(ctx, func(q *models.HistoryQuery) {
		if q.SortOrder == models.SortAsc {
			q.SortOrder = models.SortDesc
		} else {
			q.SortOrder = models.SortAsc
		}
		q.Page = 1
	})
}

func (s *DocumentStore) ChangeFilterType(ctx context.Context, documentType string) error {
	return s.reload(ctx, func(q *models.HistoryQuery) { q.DocumentType, q.Page = documentType, 1 })
}

func (s *DocumentStore) ChangeLimit(ctx context.Context, limit int) error {
	return s.reload(ctx, func(q *models.HistoryQuery) { q.Limit, q.Page = limit, 1 })
}

func (s *DocumentStore) SetFavoritesOnly(ctx context.Context, only bool) error {
	return s.reload(ctx, func(q *models.HistoryQuery) { q.FavoritesOnly, q.Page = only, 1 })
}

func (s *DocumentStore) ToggleFavoritesFilter(ctx context.Context) error {
	return s.reload(ctx, func(q *models.HistoryQuery) { q.FavoritesOnly, q.Page = !q.FavoritesOnly, 1 })
}

// ResetFilters restores the default query and clears the search text.
func (s *DocumentStore) ResetFilters(ctx context.Context) error {
	s.mu.Lock()
	s.search = ""
	s.mu.Unlock()
	return s.LoadDocumentHistory(ctx, models.DefaultHistoryQuery())
}

// HasActiveFilters reports whether anything narrows the list: a type
// filter, favorites only or a search query.
func (s *DocumentStore) HasActiveFilters() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query.DocumentType != "" || s.query.FavoritesOnly || s.search != ""
}

// ToggleFavorite flips the flag on the server, then locally on the list
// entry and on the selected document. The list is not fetched again.
func (s *DocumentStore) ToggleFavorite(ctx context.Context, documentID string) error {
	if err := s.api.ToggleFavorite(ctx, documentID); err != nil {
		s.setError(client.Message(err, "Failed to toggle favorite"))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID == documentID {
			s.docs[i].IsFavorite = !s.docs[i].IsFavorite
			break
		}
	}
	if s.selected != nil && s.selected.ID == documentID {
		s.selected.IsFavorite = !s.selected.IsFavorite
	}
	return nil
}

func (s *DocumentStore) setError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// Upload validates f, sends it for analysis and puts the result at the top
// of the list as the selected document. Validation failures never reach
// the network.
func (s *DocumentStore) Upload(ctx context.Context, f models.UploadFile, language string, analysisType models.AnalysisType) (*models.Document, error) {
	if err := ValidateUpload(f); err != nil {
		s.setError(err.Error())
		return nil, err
	}

	file, err := os.Open(f.Path)
	if err != nil {
		s.setError(err.Error())
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer file.Close()

	if analysisType == "" {
		analysisType = models.AnalysisComprehensive
	}
	name := f.Name
	if name == "" {
		name = filepath.Base(f.Path)
	}

	s.mu.Lock()
	s.uploading = true
	s.lastErr = ""
	s.mu.Unlock()

	doc, err := s.api.UploadDocument(ctx, name, file, language, analysisType)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = false
	if err != nil {
		s.lastErr = client.Message(err, "Failed to upload document")
		return nil, err
	}
	if doc == nil {
		return nil, client.ErrUnexpectedResponse
	}

	s.docs = append([]models.Document{*doc}, s.docs...)
	s.selected = cloneDoc(doc)
	s.page.TotalCount++
	s.log.Info(ctx, "document uploaded", "document_id", doc.ID, "name", doc.OriginalName)
	return cloneDoc(doc), nil
}

// Download saves the document's original bytes into dir under filename,
// or under the listed original name when filename is empty. It returns the
// written path. Store state is not changed.
func (s *DocumentStore) Download(ctx context.Context, documentID, filename, dir string) (string, error) {
	if filename == "" {
		filename = s.originalName(documentID)
	}
	filename = filex.SafeName(filename, documentID)

	dir, err := filex.EnsureDir(dir)
	if err != nil {
		return "", err
	}

	rc, err := s.api.DownloadDocument(ctx, documentID)
	if err != nil {
		s.setError(client.Message(err, "Failed to download document"))
		return "", err
	}
	defer rc.Close()

	path := filepath.Join(dir, filename)
	tmp, err := os.CreateTemp(dir, "."+filename+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		s.setError(client.Message(err, "Failed to download document"))
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *DocumentStore) originalName(documentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.ID == documentID {
			return d.OriginalName
		}
	}
	if s.selected != nil && s.selected.ID == documentID {
		return s.selected.OriginalName
	}
	return ""
}

// CreateDocumentChat starts a conversation about a document and bumps the
// listed document's usage counters without a refetch.
func (s *DocumentStore) CreateDocumentChat(ctx context.Context, documentID string) (string, error) {
	chatID, err := s.api.CreateDocumentChat(ctx, documentID)
	if err != nil {
		s.setError(client.Message(err, "Failed to create document chat"))
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID == documentID {
			s.docs[i].Usage.ChatCount++
			s.docs[i].Usage.TotalInteractions++
			break
		}
	}
	return chatID, nil
}

// LoadDocumentChats selects the document and lists its conversations.
func (s *DocumentStore) LoadDocumentChats(ctx context.Context, documentID string) error {
	s.mu.Lock()
	s.loadingChats = true
	s.lastErr = ""
	s.mu.Unlock()

	res, err := s.api.DocumentChats(ctx, documentID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingChats = false
	if err != nil {
		s.lastErr = client.Message(err, "Failed to load document chats")
		return err
	}
	s.selected = cloneDoc(res.Document)
	s.selectedChats = append([]models.ChatSummary(nil), res.Chats...)
	return nil
}

// GetDocument loads the full record and selects it.
func (s *DocumentStore) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.api.GetDocument(ctx, documentID)
	if err != nil {
		s.setError(client.Message(err, "Failed to load document"))
		return nil, err
	}
	if doc == nil {
		return nil, client.ErrUnexpectedResponse
	}

	s.mu.Lock()
	s.selected = cloneDoc(doc)
	s.mu.Unlock()
	return cloneDoc(doc), nil
}

func (s *DocumentStore) OpenURL(documentID string) string {
	return s.api.DocumentOpenURL(documentID)
}

// Select picks a document from the current list. It reports false when the
// id is not listed.
func (s *DocumentStore) Select(documentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID == documentID {
			s.selected = cloneDoc(&s.docs[i])
			return true
		}
	}
	return false
}

func (s *DocumentStore) ClearSelected() {
	s.mu.Lock()
	s.selected = nil
	s.selectedChats = nil
	s.mu.Unlock()
}

func (s *DocumentStore) ClearDocuments() {
	s.mu.Lock()
	s.docs = nil
	s.page = models.Pagination{CurrentPage: 1}
	s.mu.Unlock()
}

func (s *DocumentStore) ClearError() {
	s.setError("")
}

func (s *DocumentStore) SetSearchQuery(q string) {
	s.mu.Lock()
	s.search = q
	s.mu.Unlock()
}

func (s *DocumentStore) SetViewMode(m models.ViewMode) {
	s.mu.Lock()
	s.viewMode = m
	s.mu.Unlock()
}

func (s *DocumentStore) ToggleViewMode() models.ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewMode == models.ViewGrid {
		s.viewMode = models.ViewList
	} else {
		s.viewMode = models.ViewGrid
	}
	return s.viewMode
}

// Visible is the list as shown: documents whose original name contains the
// search query, case-insensitively. The stored list and pagination are
// left alone.
func (s *DocumentStore) Visible() []models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FilterDocuments(s.docs, s.search)
}

// FilterDocuments returns the documents whose OriginalName contains query,
// ignoring case. An empty query keeps everything.
func FilterDocuments(docs []models.Document, query string) []models.Document {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if query == "" || strings.Contains(strings.ToLower(d.OriginalName), query) {
			out = append(out, d)
		}
	}
	return out
}
