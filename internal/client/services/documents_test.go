package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/legalassist/internal/client/client"
	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDocs(e *env, n int) []models.Document {
	out := make([]models.Document, 0, n)
	for i := 0; i < n; i++ {
		typ := "contract"
		if i%3 == 0 {
			typ = "memo"
		}
		out = append(out, e.srv.AddDocument(models.Document{
			OriginalName: fmt.Sprintf("Doc-%02d.pdf", i),
			DocumentType: typ,
		}, []byte(fmt.Sprintf("content %d", i))))
	}
	return out
}

func TestLoadDocumentHistory_DefaultsAndPagination(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	seedDocs(e, 45)
	ctx := context.Background()

	require.NoError(t, e.docs.LoadDocumentHistory(ctx, models.HistoryQuery{Page: 2}))

	snap := e.docs.Snapshot()
	assert.Len(t, snap.Documents, 20)
	assert.Equal(t, models.Pagination{CurrentPage: 2, TotalPages: 3, TotalCount: 45, HasNext: true, HasPrev: true}, snap.Pagination)
	assert.Equal(t, models.SortLastUsed, snap.Query.SortBy)
	assert.Equal(t, models.SortDesc, snap.Query.SortOrder)
	assert.Equal(t, 20, snap.Query.Limit)
}

func TestNextPage_OnlyWhenHasNext(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	seedDocs(e, 45)
	ctx := context.Background()
	const path = "/api/documents/history"

	require.NoError(t, e.docs.LoadDocumentHistory(ctx, models.HistoryQuery{Page: 2, Limit: 20}))
	require.NoError(t, e.docs.NextPage(ctx))
	assert.Equal(t, 2, e.srv.Calls(http.MethodGet, path))
	assert.Equal(t, 3, e.docs.Snapshot().Pagination.CurrentPage)
	assert.False(t, e.docs.Snapshot().Pagination.HasNext)

	require.NoError(t, e.docs.NextPage(ctx))
	assert.Equal(t, 2, e.srv.Calls(http.MethodGet, path), "no fetch past the last page")

	require.NoError(t, e.docs.PrevPage(ctx))
	assert.Equal(t, 2, e.docs.Snapshot().Pagination.CurrentPage)

	require.NoError(t, e.docs.FirstPage(ctx))
	assert.Equal(t, 1, e.docs.Snapshot().Pagination.CurrentPage)
	calls := e.srv.Calls(http.MethodGet, path)
	require.NoError(t, e.docs.PrevPage(ctx))
	assert.Equal(t, calls, e.srv.Calls(http.MethodGet, path))

	require.NoError(t, e.docs.LastPage(ctx))
	assert.Equal(t, 3, e.docs.Snapshot().Pagination.CurrentPage)

	require.NoError(t, e.docs.GoToPage(ctx, 2))
	assert.Equal(t, 2, e.docs.Snapshot().Pagination.CurrentPage)
}

func TestFilters_ReloadFromFirstPage(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	docs := seedDocs(e, 30)
	ctx := context.Background()

	require.NoError(t, e.docs.LoadDocumentHistory(ctx, models.HistoryQuery{Page: 2, Limit: 10}))
	assert.False(t, e.docs.HasActiveFilters())

	require.NoError(t, e.docs.ChangeFilterType(ctx, "memo"))
	snap := e.docs.Snapshot()
	assert.Equal(t, 1, snap.Query.Page)
	assert.Equal(t, 10, snap.Pagination.TotalCount)
	for _, d := range snap.Documents {
		assert.Equal(t, "memo", d.DocumentType)
	}
	assert.True(t, e.docs.HasActiveFilters())

	require.NoError(t, e.docs.ChangeSortBy(ctx, models.SortOriginalName))
	require.NoError(t, e.docs.ChangeSortOrder(ctx, models.SortAsc))
	snap = e.docs.Snapshot()
	assert.Equal(t, "Doc-00.pdf", snap.Documents[0].OriginalName)

	require.NoError(t, e.docs.ToggleSortOrder(ctx))
	assert.Equal(t, "Doc-27.pdf", e.docs.Snapshot().Documents[0].OriginalName)

	require.NoError(t, e.docs.ChangeLimit(ctx, 5))
	assert.Len(t, e.docs.Snapshot().Documents, 5)

	require.NoError(t, e.docs.ToggleFavorite(ctx, docs[3].ID))
	require.NoError(t, e.docs.ToggleFavoritesFilter(ctx))
	snap = e.docs.Snapshot()
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, docs[3].ID, snap.Documents[0].ID)

	require.NoError(t, e.docs.ResetFilters(ctx))
	assert.Equal(t, models.DefaultHistoryQuery(), e.docs.Query())
	assert.False(t, e.docs.HasActiveFilters())
	assert.Equal(t, 30, e.docs.Snapshot().Pagination.TotalCount)
}

func TestLoadDocumentHistory_FailureKeepsPreviousList(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	seedDocs(e, 3)
	ctx := context.Background()
	require.NoError(t, e.docs.LoadDocumentHistory(ctx, models.DefaultHistoryQuery()))

	e.srv.FailNext(http.MethodGet, "/api/documents/history", http.StatusServiceUnavailable, "")
	q := models.DefaultHistoryQuery()
	q.DocumentType = "lease"
	require.Error(t, e.docs.LoadDocumentHistory(ctx, q))

	// the requested filter stays current even though the fetch failed
	assert.Equal(t, "lease", e.docs.Query().DocumentType)
	snap := e.docs.Snapshot()
	assert.Len(t, snap.Documents, 3)
	assert.Equal(t, "Failed to load document history", snap.LastError)
	assert.False(t, snap.Loading)
}

func TestToggleFavorite_FlipsWithoutRefetch(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	docs := seedDocs(e, 4)
	ctx := context.Background()

	require.NoError(t, e.docs.LoadDocumentHistory(ctx, models.DefaultHistoryQuery()))
	before := e.docs.Snapshot().Documents
	require.True(t, e.docs.Select(docs[1].ID))
	calls := e.srv.Calls(http.MethodGet, "/api/documents/history")

	require.NoError(t, e.docs.ToggleFavorite(ctx, docs[1].ID))

	snap := e.docs.Snapshot()
	assert.Equal(t, calls, e.srv.Calls(http.MethodGet, "/api/documents/history"))
	require.Len(t, snap.Documents, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, snap.Documents[i].ID)
		assert.Equal(t, before[i].ID == docs[1].ID, snap.Documents[i].IsFavorite)
	}
	assert.True(t, snap.Selected.IsFavorite)

	server, _ := e.srv.Document(docs[1].ID)
	assert.True(t, server.IsFavorite)
}

func TestToggleFavorite_ServerFailureChangesNothing(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	seedDocs(e, 1)
	ctx := context.Background()
	require.NoError(t, e.docs.LoadDocumentHistory(ctx, models.DefaultHistoryQuery()))

	err := e.docs.ToggleFavorite(ctx, "missing")
	require.ErrorIs(t, err, client.ErrNotFound)
	assert.False(t, e.docs.Snapshot().Documents[0].IsFavorite)
	assert.Equal(t, "Document not found", e.docs.Snapshot().LastError)
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o600))
	return p
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name string
		file models.UploadFile
		want error
	}{
		{"pdf", models.UploadFile{Size: 1024, MimeType: MimePDF}, nil},
		{"doc", models.UploadFile{Size: 1024, MimeType: MimeDOC}, nil},
		{"docx", models.UploadFile{Size: 1024, MimeType: MimeDOCX}, nil},
		{"mime with params", models.UploadFile{Size: 1, MimeType: "Application/PDF; charset=binary"}, nil},
		{"exactly 10 MiB", models.UploadFile{Size: 10 << 20, MimeType: MimePDF}, nil},
		{"11 MiB", models.UploadFile{Size: 11 << 20, MimeType: MimePDF}, ErrFileTooLarge},
		{"too large wins over type", models.UploadFile{Size: 11 << 20, MimeType: "text/plain"}, ErrFileTooLarge},
		{"plain text", models.UploadFile{Size: 10, MimeType: "text/plain"}, ErrInvalidFileType},
		{"unknown", models.UploadFile{Size: 10}, ErrInvalidFileType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.file)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpload_RejectedFilesNeverReachServer(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	ctx := context.Background()

	_, err := e.docs.Upload(ctx, models.UploadFile{Name: "big.pdf", Size: 11 << 20, MimeType: MimePDF, Path: "/nonexistent"}, "en", "")
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, "fileTooLarge", e.docs.Snapshot().LastError)

	_, err = e.docs.Upload(ctx, models.UploadFile{Name: "notes.txt", Size: 10, MimeType: "text/plain", Path: "/nonexistent"}, "en", "")
	require.ErrorIs(t, err, ErrInvalidFileType)
	assert.Equal(t, "invalidFileType", e.docs.Snapshot().LastError)

	assert.Zero(t, e.srv.Calls(http.MethodPost, "/api/legal/analyze-document"))
}

func TestUpload_PrependsAndSelects(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	seedDocs(e, 2)
	ctx := context.Background()
	require.NoError(t, e.docs.LoadDocumentHistory(ctx, models.DefaultHistoryQuery()))
	total := e.docs.Snapshot().Pagination.TotalCount

	path := writeFile(t, "lease.pdf", 2048)
	doc, err := e.docs.Upload(ctx, models.UploadFile{Name: "lease.pdf", Size: 2048, MimeType: MimePDF, Path: path}, "ar", models.AnalysisQuick)
	require.NoError(t, err)

	assert.Equal(t, "lease.pdf", doc.OriginalName)
	assert.Equal(t, int64(2048), doc.FileSize)
	assert.Equal(t, "ar", doc.Language)
	require.NotNil(t, doc.Analysis)

	snap := e.docs.Snapshot()
	require.Len(t, snap.Documents, 3)
	assert.Equal(t, doc.ID, snap.Documents[0].ID)
	assert.Equal(t, doc.ID, snap.Selected.ID)
	assert.Equal(t, total+1, snap.Pagination.TotalCount)
	assert.False(t, snap.Uploading)
}

func TestDownload_WritesFileWithoutStateChange(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	docs := seedDocs(e, 1)
	ctx := context.Background()
	require.NoError(t, e.docs.LoadDocumentHistory(ctx, models.DefaultHistoryQuery()))
	before := e.docs.Snapshot()
	dir := t.TempDir()

	path, err := e.docs.Download(ctx, docs[0].ID, "", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Doc-00.pdf"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content 0", string(b))
	assert.Equal(t, before, e.docs.Snapshot())

	path, err = e.docs.Download(ctx, docs[0].ID, "../../escape.pdf", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.pdf"), path)

	_, err = e.docs.Download(ctx, "missing", "x.pdf", dir)
	require.ErrorIs(t, err, client.ErrNotFound)
	_, statErr := os.Stat(filepath.Join(dir, "x.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCreateDocumentChat_BumpsLocalCounters(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	docs := seedDocs(e, 2)
	ctx := context.Background()
	require.NoError(t, e.docs.LoadDocumentHistory(ctx, models.DefaultHistoryQuery()))
	calls := e.srv.Calls(http.MethodGet, "/api/documents/history")

	chatID, err := e.docs.CreateDocumentChat(ctx, docs[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, chatID)
	assert.Equal(t, calls, e.srv.Calls(http.MethodGet, "/api/documents/history"))

	for _, d := range e.docs.Snapshot().Documents {
		if d.ID == docs[0].ID {
			assert.Equal(t, 1, d.Usage.ChatCount)
			assert.Equal(t, 1, d.Usage.TotalInteractions)
		} else {
			assert.Zero(t, d.Usage.ChatCount)
		}
	}

	require.NoError(t, e.docs.LoadDocumentChats(ctx, docs[0].ID))
	snap := e.docs.Snapshot()
	require.NotNil(t, snap.Selected)
	assert.Equal(t, docs[0].ID, snap.Selected.ID)
	require.Len(t, snap.SelectedChats, 1)
	assert.Equal(t, chatID, snap.SelectedChats[0].ID)

	e.docs.ClearSelected()
	snap = e.docs.Snapshot()
	assert.Nil(t, snap.Selected)
	assert.Empty(t, snap.SelectedChats)
}

func TestGetDocumentAndOpenURL(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	docs := seedDocs(e, 1)
	ctx := context.Background()

	d, err := e.docs.GetDocument(ctx, docs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, docs[0].ID, d.ID)
	assert.Equal(t, docs[0].ID, e.docs.Snapshot().Selected.ID)

	assert.Equal(t, e.srv.URL()+"/documents/"+docs[0].ID+"/open", e.docs.OpenURL(docs[0].ID))
	assert.False(t, e.docs.Select("unknown"))
}

func TestVisible_IsAProjection(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	for _, n := range []string{"Lease Agreement.pdf", "NDA.docx", "lease-renewal.pdf"} {
		e.srv.AddDocument(models.Document{OriginalName: n, DocumentType: "contract"}, nil)
	}
	ctx := context.Background()
	require.NoError(t, e.docs.LoadDocumentHistory(ctx, models.DefaultHistoryQuery()))

	e.docs.SetSearchQuery("LEASE")
	visible := e.docs.Visible()
	require.Len(t, visible, 2)

	snap := e.docs.Snapshot()
	assert.Len(t, snap.Documents, 3)
	assert.Equal(t, 3, snap.Pagination.TotalCount)
	assert.True(t, e.docs.HasActiveFilters())

	e.docs.SetSearchQuery("")
	assert.Len(t, e.docs.Visible(), 3)
}

func TestViewModeAndClear(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, models.ViewGrid, e.docs.Snapshot().ViewMode)
	assert.Equal(t, models.ViewList, e.docs.ToggleViewMode())
	e.docs.SetViewMode(models.ViewGrid)
	assert.Equal(t, models.ViewGrid, e.docs.Snapshot().ViewMode)

	e.login(t)
	seedDocs(e, 2)
	require.NoError(t, e.docs.LoadDocumentHistory(context.Background(), models.DefaultHistoryQuery()))
	e.docs.ClearDocuments()
	snap := e.docs.Snapshot()
	assert.Empty(t, snap.Documents)
	assert.Equal(t, models.Pagination{CurrentPage: 1}, snap.Pagination)
}
