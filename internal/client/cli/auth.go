package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/legalassist/internal/client/models"
	"golang.org/x/sync/errgroup"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

// sessionError prefers the message the session store recorded, which
// carries server and validation wording, over the raw error.
func (a *App) sessionError(err error, fallback string) error {
	if msg := a.session.Snapshot().LastError; msg != "" {
		a.prefs.Notify(models.NotifyError, msg)
		return err
	}
	return a.fail(err, fallback)
}

// Login prompts for credentials and signs in. It is also used when the
// session expires mid-command.
func (a *App) Login(ctx context.Context) error {
	a.session.SetAuthModalOpen(true)
	defer a.session.SetAuthModalOpen(false)

	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}

	user, err := a.session.Login(ctx, models.Credentials{Email: email, Password: password})
	if err != nil {
		return a.sessionError(err, "Login failed")
	}

	if ok, err := a.chat.RestoreActiveChat(ctx); err != nil {
		a.log.Warn(ctx, "restore active chat failed", "error", err)
	} else if ok {
		a.printf("Resumed conversation %q\n", a.chat.Snapshot().CurrentChatTitle)
	}
	a.notify("Welcome, " + user.DisplayName())
	return nil
}

func (a *App) cmdLogin(ctx context.Context, _ []string) error {
	return a.Login(ctx)
}

func (a *App) cmdRegister(ctx context.Context, _ []string) error {
	a.session.SetAuthModalOpen(true)
	defer a.session.SetAuthModalOpen(false)

	var reg models.Registration
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"First name", &reg.FirstName},
		{"Last name", &reg.LastName},
		{"Email", &reg.Email},
	}
	for _, f := range fields {
		v, err := getSimpleText(a.reader, f.prompt, a.out)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	var err error
	if reg.Password, err = getPassword(a.reader, "Password", a.out); err != nil {
		return err
	}
	if reg.ConfirmPassword, err = getPassword(a.reader, "Confirm password", a.out); err != nil {
		return err
	}
	reg.Language = a.prefs.Language()

	user, err := a.session.Register(ctx, reg)
	if err != nil {
		return a.sessionError(err, "Registration failed")
	}
	a.notify("Account created. Welcome, " + user.DisplayName())
	return nil
}

// cmdLogout always ends the local session, even if the server call fails.
func (a *App) cmdLogout(ctx context.Context, _ []string) error {
	err := a.session.Logout(ctx)
	a.chat.ClearChat(ctx)
	a.docs.ClearDocuments()
	a.documentID = ""
	if err != nil {
		a.log.Warn(ctx, "logout request failed", "error", err)
	}
	a.notify("Logged out")
	return nil
}

// cmdName changes the display name kept with the local session.
func (a *App) cmdName(ctx context.Context, args []string) error {
	first := args[0]
	last := strings.Join(args[1:], " ")
	patch := models.UserPatch{FirstName: &first}
	if last != "" {
		patch.LastName = &last
	}
	if err := a.session.UpdateUser(ctx, patch); err != nil {
		return a.fail(err, "Failed to update name")
	}
	a.notify("Display name: " + a.session.User().DisplayName())
	return nil
}

func (a *App) printUser(u *models.User) {
	a.printf("%s <%s>\n", u.DisplayName(), u.Email)
	if u.Role != "" {
		a.printf("  role:     %s\n", u.Role)
	}
	if u.Language != "" {
		a.printf("  language: %s\n", u.Language)
	}
	if u.Stats != nil {
		a.printf("  documents: %d  chats: %d  queries: %d\n",
			u.Stats.TotalDocuments, u.Stats.TotalChats, u.Stats.TotalQueries)
	}
}

func (a *App) cmdWhoAmI(_ context.Context, _ []string) error {
	u := a.session.User()
	if u == nil {
		a.printf("Signed in (profile not loaded, try 'profile')\n")
	} else {
		a.printUser(u)
	}
	if exp, ok := a.session.AccessTokenExpiry(); ok {
		a.printf("  access token expires in %s\n", time.Until(exp).Round(time.Second))
	}
	return nil
}

func (a *App) cmdProfile(ctx context.Context, _ []string) error {
	u, err := a.session.GetUserProfile(ctx)
	if err != nil {
		return a.fail(err, "Failed to load profile")
	}
	a.printUser(u)
	return nil
}

// cmdDashboard loads the profile, conversation stats and the first page of
// documents concurrently.
func (a *App) cmdDashboard(ctx context.Context, _ []string) error {
	var (
		user  *models.User
		stats *models.ChatStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := a.session.GetUserProfile(gctx)
		user = u
		return err
	})
	g.Go(func() error {
		st, err := a.chat.ChatStats(gctx)
		stats = st
		return err
	})
	g.Go(func() error {
		return a.docs.LoadDocumentHistory(gctx, models.DefaultHistoryQuery())
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return err
		}
		return a.fail(err, "Failed to load dashboard")
	}

	snap := a.docs.Snapshot()
	a.printf("Welcome, %s\n", user.DisplayName())
	a.printf("  conversations: %d  messages: %d\n", stats.TotalChats, stats.TotalMessages)
	a.printf("  documents:     %d\n", snap.Pagination.TotalCount)
	if len(snap.Documents) > 0 {
		a.printf("  recent:\n")
		for i, d := range snap.Documents {
			if i == 3 {
				break
			}
			a.printf("    %s  %s\n", d.ID, d.Title())
		}
	}
	return nil
}
