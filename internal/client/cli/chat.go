package cli

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/legalassist/internal/client/models"
)

func (a *App) printMessage(m models.Message) {
	switch {
	case m.IsError:
		a.printf("%s %s\n", a.view.paint("error", "!"), a.view.text(m.Content))
	case m.Type == models.MessageUser:
		a.printf("%s %s\n", a.view.paint("user", "you>"), a.view.text(m.Content))
	default:
		a.printf("%s %s\n", a.view.paint("bot", "assistant>"), a.view.text(m.Content))
	}
}

func (a *App) cmdChat(ctx context.Context, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		var err error
		if text, err = GetMultiline(a.reader, "Your question", a.out); err != nil {
			return err
		}
	}

	resp, err := a.chat.SendMessage(ctx, models.MessageInput{
		Content:    text,
		Language:   a.prefs.Language(),
		DocumentID: a.documentID,
	})
	if err != nil {
		msgs := a.chat.Snapshot().Messages
		if n := len(msgs); n > 0 && msgs[n-1].IsError {
			a.printMessage(msgs[n-1])
		}
		return a.fail(err, "Failed to send message")
	}

	if resp.BotMessage != nil {
		bot := *resp.BotMessage
		bot.Type = models.MessageBot
		a.printMessage(bot)
	}
	return nil
}

func (a *App) cmdNewChat(ctx context.Context, _ []string) error {
	a.chat.StartNewChat(ctx)
	a.documentID = ""
	a.notify("Started a new conversation")
	return nil
}

func (a *App) printHistory() {
	snap := a.chat.Snapshot()
	if len(snap.History) == 0 {
		a.printf("No conversations yet\n")
		return
	}
	for _, c := range snap.History {
		marker := " "
		if c.ID == snap.CurrentChatID {
			marker = "*"
		}
		a.printf("%s %-14s %-32s %3d msgs  %s\n", marker, c.ID, c.Title, c.MessageCount,
			c.LastActivity().Local().Format("2006-01-02 15:04"))
	}
	if snap.HasMoreHistory {
		a.printf("(type 'more' for older conversations)\n")
	}
}

func (a *App) cmdHistory(ctx context.Context, _ []string) error {
	if err := a.chat.LoadChatHistory(ctx, 1, 20, false); err != nil {
		return a.fail(err, "Failed to load chat history")
	}
	a.printHistory()
	return nil
}

func (a *App) cmdMoreHistory(ctx context.Context, _ []string) error {
	if !a.chat.Snapshot().HasMoreHistory {
		a.prefs.Notify(models.NotifyInfo, "No more conversations")
		return nil
	}
	if err := a.chat.LoadMoreChatHistory(ctx); err != nil {
		return a.fail(err, "Failed to load more chat history")
	}
	a.printHistory()
	return nil
}

func (a *App) cmdOpenChat(ctx context.Context, args []string) error {
	if err := a.chat.LoadChat(ctx, args[0]); err != nil {
		return a.fail(err, "Failed to load chat")
	}
	snap := a.chat.Snapshot()
	a.printf("== %s ==\n", snap.CurrentChatTitle)
	for _, m := range snap.Messages {
		a.printMessage(m)
	}
	return nil
}

// cmdRenameChat retitles the active conversation for this session.
func (a *App) cmdRenameChat(ctx context.Context, args []string) error {
	snap := a.chat.Snapshot()
	if snap.CurrentChatID == "" {
		a.prefs.Notify(models.NotifyError, "No active conversation")
		return nil
	}
	a.chat.SetCurrentChat(ctx, snap.CurrentChatID, strings.Join(args, " "))
	a.notify("Conversation renamed")
	return nil
}

func (a *App) cmdDeleteChat(ctx context.Context, args []string) error {
	if err := a.chat.DeleteChat(ctx, args[0]); err != nil {
		return a.fail(err, "Failed to delete chat")
	}
	a.notify("Conversation deleted")
	return nil
}

func (a *App) cmdStats(ctx context.Context, _ []string) error {
	st, err := a.chat.ChatStats(ctx)
	if err != nil {
		return a.fail(err, "Failed to fetch chat stats")
	}
	a.printf("conversations: %d\nmessages:      %d\nactive:        %d\n", st.TotalChats, st.TotalMessages, st.ActiveChats)
	return nil
}
