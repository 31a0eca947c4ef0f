package cli

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strings"
)

// printlnFn is a test seam for REPL-level output (prompt, help, usage).
var printlnFn = fmt.Println

// command is one REPL verb. Public commands work without a session.
type command struct {
	usage   string
	help    string
	minArgs int
	public  bool
	run     func(ctx context.Context, args []string) error
}

// execIface is the surface the REPL drives. App satisfies it; tests use a
// lightweight stub.
type execIface interface {
	isLoggedIn() bool
	// loginRequested reports, once, that the session expired and the user
	// should be asked to log in again.
	loginRequested() bool
	Login(ctx context.Context) error
	commands() map[string]command
	flushNotifications()
}

func helpText(cmds map[string]command, loggedIn bool) string {
	names := make([]string, 0, len(cmds))
	for name, c := range cmds {
		if loggedIn || c.public {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range names {
		c := cmds[name]
		usage := c.usage
		if usage == "" {
			usage = name
		}
		fmt.Fprintf(&b, "  %-28s %s\n", usage, c.help)
	}
	b.WriteString("  exit | quit")
	return b.String()
}

// runREPL reads commands from reader until EOF, "exit" or "quit".
//
// The first token selects the command, the rest are its arguments. Commands
// other than the public ones (help, register, login, theme, lang) need a
// session. Handler errors are not fatal: handlers report failures through
// notifications, which are printed after every command.
//
// When the session expires mid-command the user is asked to log in again
// before the next prompt.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	cmds := a.commands()

	for {
		if ctx.Err() != nil {
			return
		}
		if a.loginRequested() {
			printlnFn("Your session has expired, please log in again.")
			_ = a.Login(ctx)
			a.flushNotifications()
		}

		printlnFn(fmt.Sprintf("legal %s> ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		name, args := parts[0], parts[1:]

		switch name {
		case "exit", "quit":
			printlnFn("Bye!")
			return
		case "help":
			printlnFn(helpText(cmds, a.isLoggedIn()))
			continue
		}

		c, ok := cmds[name]
		switch {
		case !ok:
			printlnFn("Unknown command:", name)
		case !c.public && !a.isLoggedIn():
			printlnFn("Please log in first (type 'login' or 'register').")
		case len(args) < c.minArgs:
			printlnFn("Usage:", c.usage)
		default:
			_ = c.run(ctx, args)
		}
		a.flushNotifications()
	}
}
