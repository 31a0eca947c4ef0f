package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"github.com/dmitrijs2005/legalassist/internal/client/repositories/settings"
	"github.com/dmitrijs2005/legalassist/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePresenter records the last values pushed to the view.
type fakePresenter struct {
	themes []string
	lang   string
	dir    models.TextDirection
}

func (f *fakePresenter) ApplyTheme(class string) { f.themes = append(f.themes, class) }

func (f *fakePresenter) ApplyLanguage(lang string, dir models.TextDirection) {
	f.lang, f.dir = lang, dir
}

func TestPreferences_Defaults(t *testing.T) {
	p := NewPreferencesStore(setupDB(t), nil, logging.Discard())

	snap := p.Snapshot()
	assert.Equal(t, models.ThemeLight, snap.Theme)
	assert.Equal(t, "en", snap.Language)
	assert.Equal(t, models.DirLTR, snap.Direction)
	assert.True(t, snap.SidebarOpen)
	assert.False(t, snap.MobileMenuOpen)
	assert.Empty(t, snap.Notifications)
}

func TestPreferences_ThemePersistsAndPresents(t *testing.T) {
	db := setupDB(t)
	pr := &fakePresenter{}
	p := NewPreferencesStore(db, pr, logging.Discard())

	assert.Equal(t, models.ThemeDark, p.ToggleTheme())
	assert.Equal(t, models.ThemeLight, p.ToggleTheme())
	p.SetTheme(models.ThemeDark)
	p.SetTheme("neon")

	assert.Equal(t, []string{"dark", "light", "dark", "light"}, pr.themes)

	v, err := settings.NewSQLiteRepository(db).Get(context.Background(), settings.KeyTheme)
	require.NoError(t, err)
	assert.Equal(t, "light", string(v))
}

func TestPreferences_LanguageDirection(t *testing.T) {
	db := setupDB(t)
	pr := &fakePresenter{}
	p := NewPreferencesStore(db, pr, logging.Discard())

	p.SetLanguage("ar")
	assert.Equal(t, "ar", pr.lang)
	assert.Equal(t, models.DirRTL, pr.dir)
	assert.Equal(t, models.DirRTL, p.Snapshot().Direction)

	p.SetLanguage("en-GB")
	assert.Equal(t, models.DirLTR, pr.dir)

	p.SetLanguage("")
	assert.Equal(t, "en", p.Language())

	v, err := settings.NewSQLiteRepository(db).Get(context.Background(), settings.KeyLanguage)
	require.NoError(t, err)
	assert.Equal(t, "en", string(v))
}

func TestDirection(t *testing.T) {
	for lang, want := range map[string]models.TextDirection{
		"ar":    models.DirRTL,
		"ar-SA": models.DirRTL,
		"he":    models.DirRTL,
		"fa-IR": models.DirRTL,
		"ur":    models.DirRTL,
		"en":    models.DirLTR,
		"fr-CA": models.DirLTR,
		"!!":    models.DirLTR,
	} {
		assert.Equal(t, want, Direction(lang), lang)
	}
}

func TestPreferences_LoadRestoresStoredValues(t *testing.T) {
	db := setupDB(t)
	first := NewPreferencesStore(db, nil, logging.Discard())
	first.SetTheme(models.ThemeDark)
	first.SetLanguage("ar")

	pr := &fakePresenter{}
	second := NewPreferencesStore(db, pr, logging.Discard())
	second.Load(context.Background())

	assert.Equal(t, models.ThemeDark, second.Theme())
	assert.Equal(t, "ar", second.Language())
	assert.Equal(t, []string{"dark"}, pr.themes)
	assert.Equal(t, models.DirRTL, pr.dir)
}

func TestPreferences_PersistFailureIsNotFatal(t *testing.T) {
	db := setupDB(t)
	p := NewPreferencesStore(db, nil, logging.Discard())
	require.NoError(t, db.Close())

	p.SetTheme(models.ThemeDark)
	assert.Equal(t, models.ThemeDark, p.Theme())
}

func TestPreferences_PanelsAndNotifications(t *testing.T) {
	p := NewPreferencesStore(setupDB(t), nil, logging.Discard())

	assert.False(t, p.ToggleSidebar())
	p.SetSidebarOpen(true)
	assert.True(t, p.Snapshot().SidebarOpen)
	assert.True(t, p.ToggleMobileMenu())
	p.SetMobileMenuOpen(false)
	assert.False(t, p.Snapshot().MobileMenuOpen)

	a := p.Notify(models.NotifySuccess, "saved")
	b := p.Notify(models.NotifyError, "failed")
	c := p.Notify(models.NotifyInfo, "fyi")
	assert.Less(t, a, b)
	assert.Less(t, b, c)

	p.Dismiss(b)
	got := p.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "saved", got[0].Message)
	assert.Equal(t, "fyi", got[1].Message)
	assert.Empty(t, p.Drain())
}
