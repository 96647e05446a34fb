// ABOUTME: Interactive console shell: navigate routes and log in or out against one live session
// ABOUTME: A background gate loop re-routes the current page whenever the session changes

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const shellHelp = `  open <path>            Visit a route
  back                   Go back one page
  where                  Show the current route and decision
  history                Show visited routes
  whoami                 Show the session
  login <token>          Log in with a bearer token
  signin <user> [pass]   Log in with a username and password
  logout                 Log out
  features               Show chat features for the session
  help                   Show this help
  exit                   Leave the shell
`

// runShell reads commands from in until EOF, exit, or ctx is done.
func runShell(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.restore(ctx, out); err != nil {
		return err
	}

	gateDone := make(chan struct{})
	go func() {
		defer close(gateDone)
		if err := a.gate.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn("gate stopped", "error", err)
		}
	}()
	defer func() {
		cancel()
		<-gateDone
	}()

	a.gate.Visit(a.history.Location())

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	cyan.Fprintln(out, "coven console (Ctrl+D to exit, help for commands)")
	printSession(out, a.manager.Snapshot())
	printLocation(out, a.history.Location())

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1024*1024) // 1MB max input
	for {
		green.Fprint(out, "coven> ")
		if !scanner.Scan() {
			// EOF (Ctrl+D) or error
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if quit := shellCommand(ctx, a, fields[0], fields[1:], out); quit {
			return nil
		}
	}
}

// shellCommand runs one shell line and reports whether the shell should exit.
func shellCommand(ctx context.Context, a *app, cmd string, args []string, out io.Writer) bool {
	red := color.New(color.FgRed)

	switch cmd {
	case "open":
		if len(args) != 1 {
			red.Fprintln(out, "  usage: open <path>")
			return false
		}
		a.history.Navigate(args[0])
		printLocation(out, a.history.Location())

	case "back":
		if _, ok := a.history.Back(); !ok {
			red.Fprintln(out, "  no previous page")
			return false
		}
		printLocation(out, a.history.Location())

	case "where":
		path, decision := a.gate.Current()
		printLocation(out, path)
		color.New(color.FgHiBlack).Fprintf(out, "  decision: %s\n", decision)

	case "history":
		for i, e := range a.history.Entries() {
			fmt.Fprintf(out, "  %2d  %s\n", i, e)
		}

	case "whoami":
		printSession(out, a.manager.Snapshot())

	case "login":
		if len(args) != 1 {
			red.Fprintln(out, "  usage: login <token>")
			return false
		}
		if err := a.manager.Login(ctx, args[0]); err != nil {
			red.Fprintf(out, "  login failed: %v\n", err)
			printLocation(out, a.history.Location())
			return false
		}
		printSession(out, a.manager.Snapshot())
		a.gate.AfterLogin()
		printLocation(out, a.history.Location())

	case "signin":
		if len(args) < 1 || len(args) > 2 {
			red.Fprintln(out, "  usage: signin <user> [password]")
			return false
		}
		password := ""
		if len(args) == 2 {
			password = args[1]
		}
		if err := a.manager.LoginWithPassword(ctx, a.identity, args[0], password); err != nil {
			red.Fprintf(out, "  sign-in failed: %v\n", err)
			return false
		}
		printSession(out, a.manager.Snapshot())
		a.gate.AfterLogin()
		printLocation(out, a.history.Location())

	case "logout":
		a.manager.Logout()
		printLocation(out, a.history.Location())

	case "features":
		printFeatures(out, a.chat().Features())

	case "help", "?":
		fmt.Fprint(out, shellHelp)

	case "exit", "quit":
		return true

	default:
		red.Fprintf(out, "  unknown command %q (try help)\n", cmd)
	}
	return false
}
