// ABOUTME: One-shot console commands: login, logout, whoami, open and chat
// ABOUTME: Each command restores the persisted session first, then acts through the gate

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/coven-console/internal/chatstream"
	"github.com/2389/coven-console/internal/session"
)

var errNotLoggedIn = errors.New("not logged in")

// restore verifies the stored token, if any. A failed verification has
// already logged the session out, so it is reported but not returned.
func (a *app) restore(ctx context.Context, out io.Writer) error {
	err := a.manager.Initialize(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		color.New(color.FgYellow).Fprintf(out, "Stored session discarded: %v\n", err)
		return nil
	}
}

func cmdLogin(ctx context.Context, a *app, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	switch {
	case *username != "":
		if *password == "" {
			*password = promptPassword(in, out, "Password")
		}
		err = a.manager.LoginWithPassword(ctx, a.identity, *username, *password)
	case fs.NArg() == 1:
		err = a.manager.Login(ctx, fs.Arg(0))
	default:
		return fmt.Errorf("usage: login <token> | login -u USER [-p PASS]")
	}
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	printSession(out, a.manager.Snapshot())
	a.gate.AfterLogin()
	printLocation(out, a.history.Location())
	return nil
}

func cmdLogout(a *app, out io.Writer) error {
	a.manager.Logout()
	color.New(color.FgGreen).Fprintln(out, "  ✓ Logged out")
	printLocation(out, a.history.Location())
	return nil
}

func cmdWhoami(ctx context.Context, a *app, out io.Writer) error {
	if err := a.restore(ctx, out); err != nil {
		return err
	}
	printSession(out, a.manager.Snapshot())
	return nil
}

// cmdOpen visits path and reports where the guard lets the session land.
func cmdOpen(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: open <path>")
	}
	if err := a.restore(ctx, out); err != nil {
		return err
	}

	a.history.Navigate(args[0])

	entries := a.history.Entries()
	for _, e := range entries[1:] {
		fmt.Fprintf(out, "  %s\n", e)
	}
	_, decision := a.gate.Current()
	printLocation(out, a.history.Location())
	color.New(color.FgHiBlack).Fprintf(out, "  decision: %s\n", decision)
	return nil
}

// cmdChat opens the chat stream for the current session and prints events
// until ctx is done, the server ends the stream, or -n events were shown.
func cmdChat(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("n", 0, "stop after this many events")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.restore(ctx, out); err != nil {
		return err
	}
	if !a.manager.Snapshot().Authenticated() {
		return errNotLoggedIn
	}

	client := a.chat()
	printFeatures(out, client.Features())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := client.Stream(ctx)
	if err != nil {
		return fmt.Errorf("opening chat stream: %w", err)
	}

	dim := color.New(color.Faint)
	shown := 0
	for ev := range events {
		switch ev.Type {
		case chatstream.EventError:
			color.New(color.FgRed).Fprintf(out, "  [error] %s\n", ev.Data)
		case chatstream.EventHeartbeat:
			dim.Fprintf(out, "  [heartbeat] %s\n", ev.Data)
		default:
			fmt.Fprintf(out, "  [%s] %s\n", ev.Type, ev.Data)
		}
		shown++
		if *limit > 0 && shown >= *limit {
			break
		}
	}
	return nil
}

func printSession(out io.Writer, s session.Session) {
	user, ok := s.User()
	if !ok {
		color.New(color.FgYellow).Fprintf(out, "  Not logged in (%s)\n", s.Status())
		return
	}

	green := color.New(color.FgGreen)
	green.Fprintf(out, "  ✓ %s", user.DisplayName)
	if user.Email != "" {
		fmt.Fprintf(out, " <%s>", user.Email)
	}
	color.New(color.FgCyan).Fprintf(out, " [%s]\n", user.Role)
}

func printLocation(out io.Writer, path string) {
	color.New(color.FgGreen).Fprint(out, "  ▶ ")
	fmt.Fprintln(out, path)
}

func printFeatures(out io.Writer, features []chatstream.Feature) {
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}
	color.New(color.FgHiBlack).Fprintf(out, "  features: %s\n", strings.Join(names, ", "))
}

// promptPassword reads a password without echo when in is a terminal and
// falls back to a plain line read otherwise.
func promptPassword(in io.Reader, out io.Writer, question string) string {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return promptLine(in, out, question)
	}

	fmt.Fprintf(out, "%s: ", question)
	raw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(out) // newline after hidden input
	if err != nil {
		return ""
	}
	return string(raw)
}

// promptLine reads one line from in after printing question.
func promptLine(in io.Reader, out io.Writer, question string) string {
	fmt.Fprintf(out, "%s: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return ""
	}
	return strings.TrimSpace(line)
}
