package cli

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/legalassist/internal/client/models"
)

func (a *App) cmdTheme(_ context.Context, args []string) error {
	var theme models.Theme
	if len(args) == 0 {
		theme = a.prefs.ToggleTheme()
	} else {
		switch t := models.Theme(strings.ToLower(args[0])); t {
		case models.ThemeLight, models.ThemeDark:
			a.prefs.SetTheme(t)
			theme = t
		default:
			a.prefs.Notify(models.NotifyError, "Theme must be light or dark")
			return nil
		}
	}
	a.prefs.Notify(models.NotifyInfo, "Theme: "+string(theme))
	return nil
}

func (a *App) cmdLanguage(_ context.Context, args []string) error {
	a.prefs.SetLanguage(args[0])
	p := a.prefs.Snapshot()
	a.prefs.Notify(models.NotifyInfo, "Language: "+p.Language+" ("+string(p.Direction)+")")
	return nil
}

// cmdSidebar shows or hides the conversation and document context in the
// prompt.
func (a *App) cmdSidebar(_ context.Context, _ []string) error {
	state := "hidden"
	if a.prefs.ToggleSidebar() {
		state = "shown"
	}
	a.prefs.Notify(models.NotifyInfo, "Context "+state)
	return nil
}
