package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/legalassist/internal/client/client"
	"github.com/dmitrijs2005/legalassist/internal/client/config"
	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/dmitrijs2005/legalassist/internal/client/services"
	"github.com/dmitrijs2005/legalassist/internal/logging"
)

// Stores groups the state containers the App drives.
type Stores struct {
	Session     *services.SessionStore
	Chat        *services.ChatStore
	Documents   *services.DocumentStore
	Preferences *services.PreferencesStore
}

type App struct {
	cfg     *config.Config
	session *services.SessionStore
	chat    *services.ChatStore
	docs    *services.DocumentStore
	prefs   *services.PreferencesStore
	view    *TerminalView
	log     logging.Logger

	reader *bufio.Reader
	out    io.Writer

	// documentID is attached to chat messages sent after "use <docId>".
	documentID string
	loginDue   atomic.Bool
}

// NewApp wires the stores to a terminal. view should be the Presenter the
// preference store was built with.
func NewApp(cfg *config.Config, st Stores, view *TerminalView, in io.Reader, out io.Writer, log logging.Logger) *App {
	a := &App{
		cfg:     cfg,
		session: st.Session,
		chat:    st.Chat,
		docs:    st.Documents,
		prefs:   st.Preferences,
		view:    view,
		log:     log.With("component", "cli"),
		reader:  bufio.NewReader(in),
		out:     out,
	}

	a.session.OnSessionExpired(func(ctx context.Context, cause error) {
		a.log.Warn(ctx, "session expired", "cause", cause)
		a.loginDue.Store(true)
	})

	return a
}

// Run restores preferences and any stored login, then serves the REPL
// until the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.prefs.Load(ctx)

	if err := a.session.Bootstrap(ctx); err != nil {
		a.log.Info(ctx, "no stored session", "error", err)
	}
	// the active conversation is session scoped and starts empty here
	if a.session.IsAuthenticated() {
		a.printf("Welcome back, %s\n", a.session.User().DisplayName())
	}

	a.printf("Legal Assistant CLI (type 'help' for commands)\n")
	runREPL(ctx, a, a.status, a.reader)

	a.session.SetAuthModalOpen(false)
	return ctx.Err()
}

func (a *App) isLoggedIn() bool {
	return a.session.IsAuthenticated()
}

// loginRequested drops conversation and document state left over from an
// expired session and reports whether a login prompt is due. The expiry
// hook may fire on any goroutine, so the cleanup happens here instead.
func (a *App) loginRequested() bool {
	if !a.loginDue.Swap(false) {
		return false
	}
	ctx := context.Background()
	a.chat.ClearChat(ctx)
	a.docs.ClearDocuments()
	a.documentID = ""
	return true
}

// status is shown in the prompt: user initials and the active conversation.
func (a *App) status() string {
	var parts []string
	if u := a.session.User(); u != nil && a.isLoggedIn() {
		parts = append(parts, u.Initials())
	}
	if a.prefs.Snapshot().SidebarOpen {
		if title := a.chat.Snapshot().CurrentChatTitle; title != "" {
			parts = append(parts, title)
		}
		if a.documentID != "" {
			parts = append(parts, "doc:"+a.documentID)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " | ") + ") "
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// fail reports err as an error toast and returns it.
func (a *App) fail(err error, fallback string) error {
	a.prefs.Notify(models.NotifyError, describe(err, fallback))
	return err
}

func (a *App) notify(msg string) {
	a.prefs.Notify(models.NotifySuccess, msg)
}

// describe turns a store error into something a user can read.
func describe(err error, fallback string) string {
	switch {
	case errors.Is(err, services.ErrFileTooLarge):
		return "File is too large (10 MB max)"
	case errors.Is(err, services.ErrInvalidFileType):
		return "Only PDF, DOC and DOCX files are supported"
	case errors.Is(err, services.ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, services.ErrEmptyMessage):
		return "Message is empty"
	case errors.Is(err, client.ErrUnavailable):
		return "Server is unavailable, try again later"
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) || errors.Is(err, client.ErrSessionExpired) {
		return client.Message(err, fallback)
	}
	if err != nil && fallback == "" {
		return err.Error()
	}
	return fallback
}

// flushNotifications prints and drops pending toasts.
func (a *App) flushNotifications() {
	for _, n := range a.prefs.Drain() {
		a.printf("%s %s\n", a.view.badge(n.Kind), n.Message)
	}
}

func (a *App) commands() map[string]command {
	return map[string]command{
		"register":  {help: "create an account", public: true, run: a.cmdRegister},
		"login":     {help: "sign in", public: true, run: a.cmdLogin},
		"logout":    {help: "sign out", run: a.cmdLogout},
		"whoami":    {help: "show the signed-in user", run: a.cmdWhoAmI},
		"profile":   {help: "reload and show your profile", run: a.cmdProfile},
		"dashboard": {help: "profile, conversation and document totals", run: a.cmdDashboard},
		"name":      {usage: "name <first> [last]", help: "change your display name on this device", minArgs: 1, run: a.cmdName},

		"chat":    {usage: "chat [text]", help: "ask a question (no text: multi-line)", run: a.cmdChat},
		"new":     {help: "start a new conversation", run: a.cmdNewChat},
		"history": {help: "list your conversations", run: a.cmdHistory},
		"more":    {help: "load more conversations", run: a.cmdMoreHistory},
		"open":    {usage: "open <chatId>", help: "open a conversation", minArgs: 1, run: a.cmdOpenChat},
		"title":   {usage: "title <text>", help: "rename the active conversation", minArgs: 1, run: a.cmdRenameChat},
		"delete":  {usage: "delete <chatId>", help: "delete a conversation", minArgs: 1, run: a.cmdDeleteChat},
		"stats":   {help: "conversation statistics", run: a.cmdStats},

		"docs":      {usage: "docs [page]", help: "list analysed documents", run: a.cmdDocs},
		"next":      {help: "next documents page", run: a.pageCmd((*services.DocumentStore).NextPage)},
		"prev":      {help: "previous documents page", run: a.pageCmd((*services.DocumentStore).PrevPage)},
		"first":     {help: "first documents page", run: a.pageCmd((*services.DocumentStore).FirstPage)},
		"last":      {help: "last documents page", run: a.pageCmd((*services.DocumentStore).LastPage)},
		"page":      {usage: "page <n>", help: "go to a documents page", minArgs: 1, run: a.cmdGoToPage},
		"limit":     {usage: "limit <n>", help: "documents per page", minArgs: 1, run: a.cmdLimit},
		"sort":      {usage: "sort [field] [asc|desc]", help: "sort documents (no args: flip order)", run: a.cmdSort},
		"type":      {usage: "type <documentType|all>", help: "filter documents by type", minArgs: 1, run: a.cmdFilterType},
		"favorites": {help: "toggle favourites-only filter", run: a.cmdFavorites},
		"search":    {usage: "search [text]", help: "filter the loaded page by name", run: a.cmdSearch},
		"reset":     {help: "clear document filters", run: a.cmdResetFilters},
		"view":      {usage: "view [grid|list]", help: "switch grid/list view", run: a.cmdView},
		"fav":       {usage: "fav <docId>", help: "toggle favourite", minArgs: 1, run: a.cmdFavorite},
		"upload":    {usage: "upload <path>", help: "upload a PDF/DOC/DOCX for analysis", minArgs: 1, run: a.cmdUpload},
		"download":  {usage: "download <docId> [name]", help: "save the original file", minArgs: 1, run: a.cmdDownload},
		"doc":       {usage: "doc <docId>", help: "show a document and its analysis", minArgs: 1, run: a.cmdDocument},
		"docchat":   {usage: "docchat <docId>", help: "start a conversation about a document", minArgs: 1, run: a.cmdDocumentChat},
		"docchats":  {usage: "docchats <docId>", help: "list conversations about a document", minArgs: 1, run: a.cmdDocumentChats},
		"docurl":    {usage: "docurl <docId>", help: "print the browser link to a document", minArgs: 1, run: a.cmdDocumentURL},
		"use":       {usage: "use <docId|none>", help: "attach a document to your next questions", minArgs: 1, run: a.cmdUseDocument},

		"theme":   {usage: "theme [light|dark]", help: "switch colour theme", public: true, run: a.cmdTheme},
		"lang":    {usage: "lang <code>", help: "set the answer language", public: true, minArgs: 1, run: a.cmdLanguage},
		"sidebar": {help: "show or hide conversation context in the prompt", public: true, run: a.cmdSidebar},
	}
}

// TerminalView is the Presenter for a terminal: it keeps the active theme
// and text direction and applies them to printed text.
type TerminalView struct {
	color bool

	mu    sync.Mutex
	theme string
	lang  string
	dir   models.TextDirection
}

// NewTerminalView returns a view; color enables ANSI styling.
func NewTerminalView(color bool) *TerminalView {
	return &TerminalView{color: color, theme: string(models.ThemeLight), lang: "en", dir: models.DirLTR}
}

func (v *TerminalView) ApplyTheme(class string) {
	v.mu.Lock()
	v.theme = class
	v.mu.Unlock()
}

func (v *TerminalView) ApplyLanguage(lang string, dir models.TextDirection) {
	v.mu.Lock()
	v.lang, v.dir = lang, dir
	v.mu.Unlock()
}

const ansiReset = "\x1b[0m"

var palettes = map[string]map[string]string{
	"light": {"user": "\x1b[34m", "bot": "\x1b[32m", "error": "\x1b[31m", "info": "\x1b[90m"},
	"dark":  {"user": "\x1b[94m", "bot": "\x1b[92m", "error": "\x1b[91m", "info": "\x1b[37m"},
}

// paint wraps s in the theme colour for role when colours are on.
func (v *TerminalView) paint(role, s string) string {
	if !v.color {
		return s
	}
	v.mu.Lock()
	code := palettes[v.theme][role]
	v.mu.Unlock()
	if code == "" {
		return s
	}
	return code + s + ansiReset
}

// text marks right-to-left paragraphs so terminals with bidi support lay
// them out correctly.
func (v *TerminalView) text(s string) string {
	v.mu.Lock()
	rtl := v.dir == models.DirRTL
	v.mu.Unlock()
	if rtl {
		return "\u200f" + s
	}
	return s
}

func (v *TerminalView) badge(kind models.NotificationKind) string {
	switch kind {
	case models.NotifyError:
		return v.paint("error", "[error]")
	case models.NotifySuccess:
		return v.paint("bot", "[ok]")
	default:
		return v.paint("info", "[info]")
	}
}
