package services

import (
	"context"
	"strings"
	"sync"

	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/dmitrijs2005/legalassist/internal/client/repositories/settings"
	"github.com/dmitrijs2005/legalassist/internal/dbx"
	"github.com/dmitrijs2005/legalassist/internal/logging"
	"golang.org/x/text/language"
)

// Presenter receives the presentation side of preference changes: a root
// theme class and the locale with its text direction.
type Presenter interface {
	ApplyTheme(class string)
	ApplyLanguage(lang string, dir models.TextDirection)
}

type nopPresenter struct{}

func (nopPresenter) ApplyTheme(string) {}
func (nopPresenter) ApplyLanguage(string, models.TextDirection) {}

// Preferences is a copy of the preference store.
type Preferences struct {
	Theme          models.Theme
	Language       string
	Direction      models.TextDirection
	SidebarOpen    bool
	MobileMenuOpen bool
	Notifications  []models.Notification
}

type PreferencesStore struct {
	db        dbx.DBTX
	presenter Presenter
	log       logging.Logger

	mu            sync.Mutex
	theme         models.Theme
	lang          string
	sidebarOpen   bool
	mobileOpen    bool
	notifications []models.Notification
	nextID        int
}

// NewPreferencesStore starts from the defaults: light theme, English,
// sidebar open. Call Load to pick up stored values.
func NewPreferencesStore(db dbx.DBTX, presenter Presenter, log logging.Logger) *PreferencesStore {
	if presenter == nil {
		presenter = nopPresenter{}
	}
	return &PreferencesStore{
		db:          db,
		presenter:   presenter,
		log:         log.With("component", "preferences"),
		theme:       models.ThemeLight,
		lang:        defaultLanguage,
		sidebarOpen: true,
	}
}

// Direction is rtl for languages written right to left.
func Direction(lang string) models.TextDirection {
	tag, err := language.Parse(lang)
	if err != nil {
		return models.DirLTR
	}
	base, _ := tag.Base()
	switch base.String() {
	case "ar", "he", "fa", "ur":
		return models.DirRTL
	default:
		return models.DirLTR
	}
}

func normalizeTheme(t models.Theme) models.Theme {
	if t == models.ThemeDark {
		return models.ThemeDark
	}
	return models.ThemeLight
}

// Load reads the stored theme and language, falling back to defaults, and
// pushes both to the presenter.
func (p *PreferencesStore) Load(ctx context.Context) {
	repo := settings.NewSQLiteRepository(p.db)

	theme, err := repo.Get(ctx, settings.KeyTheme)
	if err != nil {
		p.log.Warn(ctx, "failed to read theme", "error", err)
	}
	lang, err := repo.Get(ctx, settings.KeyLanguage)
	if err != nil {
		p.log.Warn(ctx, "failed to read language", "error", err)
	}

	p.mu.Lock()
	if len(theme) > 0 {
		p.theme = normalizeTheme(models.Theme(theme))
	}
	if l := strings.TrimSpace(string(lang)); l != "" {
		p.lang = l
	}
	t, l := p.theme, p.lang
	p.mu.Unlock()

	p.presenter.ApplyTheme(string(t))
	p.presenter.ApplyLanguage(l, Direction(l))
}

func (p *PreferencesStore) Snapshot() Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Preferences{
		Theme:          p.theme,
		Language:       p.lang,
		Direction:      Direction(p.lang),
		SidebarOpen:    p.sidebarOpen,
		MobileMenuOpen: p.mobileOpen,
		Notifications:  append([]models.Notification(nil), p.notifications...),
	}
}

func (p *PreferencesStore) Theme() models.Theme {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.theme
}

func (p *PreferencesStore) Language() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lang
}

// persist logs failures; a preference change never fails.
func (p *PreferencesStore) persist(key, value string) {
	ctx := context.Background()
	if err := settings.NewSQLiteRepository(p.db).Set(ctx, key, []byte(value)); err != nil {
		p.log.Warn(ctx, "failed to persist preference", "key", key, "error", err)
	}
}

func (p *PreferencesStore) SetTheme(t models.Theme) {
	t = normalizeTheme(t)

	p.mu.Lock()
	p.theme = t
	p.mu.Unlock()

	p.persist(settings.KeyTheme, string(t))
	p.presenter.ApplyTheme(string(t))
}

func (p *PreferencesStore) ToggleTheme() models.Theme {
	next := models.ThemeDark
	if p.Theme() == models.ThemeDark {
		next = models.ThemeLight
	}
	p.SetTheme(next)
	return next
}

// SetLanguage switches the UI language. Unparseable codes are stored as
// given and rendered left to right.
func (p *PreferencesStore) SetLanguage(lang string) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = defaultLanguage
	}

	p.mu.Lock()
	p.lang = lang
	p.mu.Unlock()

	p.persist(settings.KeyLanguage, lang)
	p.presenter.ApplyLanguage(lang, Direction(lang))
}

func (p *PreferencesStore) ToggleSidebar() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sidebarOpen = !p.sidebarOpen
	return p.sidebarOpen
}

func (p *PreferencesStore) SetSidebarOpen(open bool) {
	p.mu.Lock()
	p.sidebarOpen = open
	p.mu.Unlock()
}

func (p *PreferencesStore) ToggleMobileMenu() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mobileOpen = !p.mobileOpen
	return p.mobileOpen
}

func (p *PreferencesStore) SetMobileMenuOpen(open bool) {
	p.mu.Lock()
	p.mobileOpen = open
	p.mu.Unlock()
}

// Notify queues a toast and returns its id.
func (p *PreferencesStore) Notify(kind models.NotificationKind, msg string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.notifications = append(p.notifications, models.Notification{ID: p.nextID, Kind: kind, Message: msg})
	return p.nextID
}

func (p *PreferencesStore) Dismiss(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.notifications[:0]
	for _, n := range p.notifications {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	p.notifications = kept
}

// Drain returns the queued toasts in order and empties the queue.
func (p *PreferencesStore) Drain() []models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.notifications
	p.notifications = nil
	return out
}
