package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"code.sajari.com/docconv"
	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/dmitrijs2005/legalassist/internal/client/services"
)

var sortFields = map[string]models.SortField{
	"lastused":          models.SortLastUsed,
	"used":              models.SortLastUsed,
	"createdat":         models.SortCreatedAt,
	"created":           models.SortCreatedAt,
	"originalname":      models.SortOriginalName,
	"name":              models.SortOriginalName,
	"totalinteractions": models.SortTotalInteractions,
	"interactions":      models.SortTotalInteractions,
}

func parseOrder(s string) (models.SortOrder, bool) {
	switch strings.ToLower(s) {
	case "asc":
		return models.SortAsc, true
	case "desc":
		return models.SortDesc, true
	}
	return "", false
}

func (a *App) printDocuments() {
	snap := a.docs.Snapshot()
	docs := a.docs.Visible()

	if len(docs) == 0 {
		if snap.SearchQuery != "" {
			a.printf("No documents match %q\n", snap.SearchQuery)
		} else {
			a.printf("No documents\n")
		}
	}

	for _, d := range docs {
		star := " "
		if d.IsFavorite {
			star = "*"
		}
		if snap.ViewMode == models.ViewList {
			a.printf("%s %-10s %-36s %-12s %3d chats  %s\n", star, d.ID, d.Title(), d.DocumentType,
				d.Usage.ChatCount, d.CreatedAt.Local().Format("2006-01-02"))
			continue
		}
		a.printf("%s [%s] %s\n", star, d.ID, d.Title())
		a.printf("    %s | %d interactions\n", d.DocumentType, d.Usage.TotalInteractions)
	}

	p := snap.Pagination
	q := snap.Query
	a.printf("page %d/%d, %d documents, sorted by %s %s", p.CurrentPage, max(p.TotalPages, 1), p.TotalCount, q.SortBy, q.SortOrder)
	if a.docs.HasActiveFilters() {
		var f []string
		if q.DocumentType != "" {
			f = append(f, "type="+q.DocumentType)
		}
		if q.FavoritesOnly {
			f = append(f, "favourites")
		}
		if snap.SearchQuery != "" {
			f = append(f, fmt.Sprintf("search=%q", snap.SearchQuery))
		}
		a.printf(" [%s]", strings.Join(f, ", "))
	}
	a.printf("\n")
}

// docsDone prints the list after a successful reload.
func (a *App) docsDone(err error) error {
	if err != nil {
		return a.fail(err, "Failed to load document history")
	}
	a.printDocuments()
	return nil
}

func (a *App) cmdDocs(ctx context.Context, args []string) error {
	q := a.docs.Query()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			a.prefs.Notify(models.NotifyError, "Page must be a positive number")
			return nil
		}
		q.Page = n
	}
	return a.docsDone(a.docs.LoadDocumentHistory(ctx, q))
}

func (a *App) pageCmd(fn func(*services.DocumentStore, context.Context) error) func(context.Context, []string) error {
	return func(ctx context.Context, _ []string) error {
		return a.docsDone(fn(a.docs, ctx))
	}
}

func (a *App) cmdGoToPage(ctx context.Context, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		a.prefs.Notify(models.NotifyError, "Page must be a positive number")
		return nil
	}
	return a.docsDone(a.docs.GoToPage(ctx, n))
}

func (a *App) cmdLimit(ctx context.Context, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		a.prefs.Notify(models.NotifyError, "Limit must be a positive number")
		return nil
	}
	return a.docsDone(a.docs.ChangeLimit(ctx, n))
}

func (a *App) cmdSort(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.docsDone(a.docs.ToggleSortOrder(ctx))
	}

	if order, ok := parseOrder(args[0]); ok && len(args) == 1 {
		return a.docsDone(a.docs.ChangeSortOrder(ctx, order))
	}

	field, ok := sortFields[strings.ToLower(args[0])]
	if !ok {
		a.prefs.Notify(models.NotifyError, "Sort by one of: lastUsed, createdAt, originalName, totalInteractions")
		return nil
	}
	if len(args) == 1 {
		return a.docsDone(a.docs.ChangeSortBy(ctx, field))
	}

	order, ok := parseOrder(args[1])
	if !ok {
		a.prefs.Notify(models.NotifyError, "Order must be asc or desc")
		return nil
	}
	q := a.docs.Query()
	q.SortBy, q.SortOrder, q.Page = field, order, 1
	return a.docsDone(a.docs.LoadDocumentHistory(ctx, q))
}

func (a *App) cmdFilterType(ctx context.Context, args []string) error {
	t := args[0]
	if strings.EqualFold(t, "all") {
		t = ""
	}
	return a.docsDone(a.docs.ChangeFilterType(ctx, t))
}

func (a *App) cmdFavorites(ctx context.Context, _ []string) error {
	return a.docsDone(a.docs.ToggleFavoritesFilter(ctx))
}

// cmdSearch filters the loaded page locally; it never hits the server.
func (a *App) cmdSearch(_ context.Context, args []string) error {
	a.docs.SetSearchQuery(strings.Join(args, " "))
	a.printDocuments()
	return nil
}

func (a *App) cmdResetFilters(ctx context.Context, _ []string) error {
	return a.docsDone(a.docs.ResetFilters(ctx))
}

func (a *App) cmdView(_ context.Context, args []string) error {
	var mode models.ViewMode
	if len(args) == 0 {
		mode = a.docs.ToggleViewMode()
	} else {
		switch m := models.ViewMode(strings.ToLower(args[0])); m {
		case models.ViewGrid, models.ViewList:
			a.docs.SetViewMode(m)
			mode = m
		default:
			a.prefs.Notify(models.NotifyError, "View must be grid or list")
			return nil
		}
	}
	a.prefs.Notify(models.NotifyInfo, "View: "+string(mode))
	a.printDocuments()
	return nil
}

func (a *App) cmdFavorite(ctx context.Context, args []string) error {
	if err := a.docs.ToggleFavorite(ctx, args[0]); err != nil {
		return a.fail(err, "Failed to update favourite")
	}
	a.notify("Favourite updated")
	return nil
}

// cmdUpload sends a local file for analysis. The MIME type comes from the
// file extension; size and type are checked before anything is sent.
func (a *App) cmdUpload(ctx context.Context, args []string) error {
	path := strings.Join(args, " ")
	fi, err := os.Stat(path)
	if err != nil {
		return a.fail(err, "")
	}
	if fi.IsDir() {
		return a.fail(fmt.Errorf("%s is a directory", path), "")
	}

	f := models.UploadFile{
		Name:     filepath.Base(path),
		Size:     fi.Size(),
		MimeType: docconv.MimeTypeByExtension(path),
		Path:     path,
	}

	a.printf("Uploading %s for analysis...\n", f.Name)
	doc, err := a.docs.Upload(ctx, f, a.prefs.Language(), models.AnalysisComprehensive)
	if err != nil {
		return a.fail(err, "Failed to upload document")
	}
	a.notify(fmt.Sprintf("Uploaded %s as %s", doc.Title(), doc.ID))
	a.printDocument(doc)
	return nil
}

func (a *App) cmdDownload(ctx context.Context, args []string) error {
	name := ""
	if len(args) > 1 {
		name = strings.Join(args[1:], " ")
	}
	path, err := a.docs.Download(ctx, args[0], name, a.cfg.DownloadDir)
	if err != nil {
		return a.fail(err, "Failed to download document")
	}
	a.notify("Saved to " + path)
	return nil
}

func (a *App) printDocument(d *models.Document) {
	a.printf("%s  %s\n", d.ID, d.Title())
	a.printf("  type: %s  language: %s  size: %d bytes\n", d.DocumentType, d.Language, d.FileSize)
	a.printf("  views: %d  chats: %d  interactions: %d\n", d.Usage.ViewCount, d.Usage.ChatCount, d.Usage.TotalInteractions)
	if len(d.Tags) > 0 {
		a.printf("  tags: %s\n", strings.Join(d.Tags, ", "))
	}

	an := d.Analysis
	if an == nil {
		return
	}
	if an.Summary != "" {
		a.printf("\nSummary\n  %s\n", a.view.text(an.Summary))
	}
	if len(an.KeyPoints) > 0 {
		a.printf("\nKey points\n")
		for _, p := range an.KeyPoints {
			a.printf("  - %s\n", a.view.text(p))
		}
	}
	if len(an.Risks) > 0 {
		a.printf("\nRisks\n")
		for _, r := range an.Risks {
			a.printf("  [%s] %s: %s\n", r.Level, r.Category, a.view.text(r.Description))
		}
	}
	if recs := an.Compliance.SaudiLaw.Recommendations; len(recs) > 0 {
		a.printf("\nCompliance recommendations\n")
		for _, r := range recs {
			a.printf("  - %s\n", a.view.text(r))
		}
	}
}

func (a *App) cmdDocument(ctx context.Context, args []string) error {
	d, err := a.docs.GetDocument(ctx, args[0])
	if err != nil {
		return a.fail(err, "Failed to load document")
	}
	a.printDocument(d)
	return nil
}

// cmdDocumentChat starts a conversation about a document, opens it and
// attaches the document to the following questions.
func (a *App) cmdDocumentChat(ctx context.Context, args []string) error {
	chatID, err := a.docs.CreateDocumentChat(ctx, args[0])
	if err != nil {
		return a.fail(err, "Failed to create document chat")
	}
	if err := a.chat.LoadChat(ctx, chatID); err != nil {
		return a.fail(err, "Failed to load chat")
	}
	a.documentID = args[0]
	a.notify(fmt.Sprintf("Conversation %s started, ask away with 'chat'", chatID))
	return nil
}

func (a *App) cmdDocumentChats(ctx context.Context, args []string) error {
	if err := a.docs.LoadDocumentChats(ctx, args[0]); err != nil {
		return a.fail(err, "Failed to load document chats")
	}
	snap := a.docs.Snapshot()
	if snap.Selected != nil {
		a.printf("Conversations about %s\n", snap.Selected.Title())
	}
	if len(snap.SelectedChats) == 0 {
		a.printf("  none yet (start one with 'docchat %s')\n", args[0])
	}
	for _, c := range snap.SelectedChats {
		a.printf("  %-14s %s\n", c.ID, c.Title)
	}
	return nil
}

func (a *App) cmdDocumentURL(_ context.Context, args []string) error {
	a.printf("%s\n", a.docs.OpenURL(args[0]))
	return nil
}

func (a *App) cmdUseDocument(_ context.Context, args []string) error {
	if strings.EqualFold(args[0], "none") {
		a.documentID = ""
		a.docs.ClearSelected()
		a.prefs.Notify(models.NotifyInfo, "No document attached")
		return nil
	}
	if !a.docs.Select(args[0]) {
		a.prefs.Notify(models.NotifyInfo, "Document is not on the loaded page; attaching by id")
	}
	a.documentID = args[0]
	a.notify("Questions will refer to document " + args[0])
	return nil
}
