// ABOUTME: Entry point for coven-console, a terminal client for the coven operations console
// ABOUTME: Keeps a persisted session and routes every page through the role-aware guard

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/coven-console/internal/config"
	"github.com/2389/coven-console/internal/logging"
)

const banner = `
  ___ _____   _____ _ __         ___ ___  _ __  ___  ___ | | ___
 / __/ _ \ \ / / _ \ '_ \ _____ / __/ _ \| '_ \/ __|/ _ \| |/ _ \
| (_| (_) \ V /  __/ | | |_____| (_| (_) | | | \__ \ (_) | |  __/
 \___\___/ \_/ \___|_| |_|      \___\___/|_| |_|___/\___/|_|\___|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	if err := run(ctx, cmd, args); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	cfg, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd {
	case "login":
		return cmdLogin(ctx, a, args, os.Stdin, os.Stdout)
	case "logout":
		return cmdLogout(a, os.Stdout)
	case "whoami":
		return cmdWhoami(ctx, a, os.Stdout)
	case "open":
		return cmdOpen(ctx, a, args, os.Stdout)
	case "chat":
		return cmdChat(ctx, a, args, os.Stdout)
	case "shell":
		color.New(color.FgCyan).Print(banner)
		return runShell(ctx, a, os.Stdin, os.Stdout)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: coven-console <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login <token>           Log in with a bearer token")
	fmt.Println("  login -u USER [-p PASS] Log in with a username and password")
	fmt.Println("  logout                  Clear the stored session")
	fmt.Println("  whoami                  Show the current session")
	fmt.Println("  open <path>             Visit a route and show where the guard lands")
	fmt.Println("  chat [-n N]             Stream chat events for the session")
	fmt.Println("  shell                   Interactive console")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Printf("  %-22s Config file (default: ~/.config/coven/console.yaml)\n", config.EnvConfigPath)
	fmt.Println()
}
