// ABOUTME: Entry point for coven-identity, a development identity service for the console
// ABOUTME: Serves login, /auth/me and the chat event stream; seeds users into SQLite

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/coven-console/internal/auth"
	"github.com/2389/coven-console/internal/logging"
	"github.com/2389/coven-console/internal/session"
	"github.com/2389/coven-console/internal/store"
)

// version is set at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "seed":
		err = runSeed(ctx, os.Args[2:], os.Stdout)
	case "users":
		err = runUsers(ctx, os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: coven-identity <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  serve                                  Start the identity service")
	fmt.Println("  seed -username U -password P [-role R] Create a user (role admin|user, default user)")
	fmt.Println("  users                                  List users")
	fmt.Println("  health                                 Check service health")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Printf("  %-22s Config file (default: ~/.config/coven/identity.toml)\n", EnvConfigPath)
	fmt.Println()
}

func loadConfig() (*Config, error) {
	path := configPath()
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating token verifier: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServer(s, verifier, cfg.TokenTTL(), cfg.Heartbeat(), logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)
	cyan.Println(figure.NewFigure("coven-identity", "cybermedium", true).String())
	gray.Printf("    version: %s\n\n", version)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.Addr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n\n", cfg.Database.Path)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting coven-identity", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runSeed creates a user from flags.
func runSeed(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	username := fs.String("username", "", "login name")
	password := fs.String("password", "", "password")
	role := fs.String("role", string(session.RoleUser), "admin or user")
	email := fs.String("email", "", "email address")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	user, err := seedUser(ctx, s, *username, *password, *role, *email, *name)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(out, "  ✓ Created %s %s (%s)\n", user.Role, user.Username, user.ID)
	return nil
}

// seedUser validates input, hashes the password and stores a new user.
func seedUser(ctx context.Context, users store.UserStore, username, password, role, email, name string) (*store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("-username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("-password is required")
	}
	r, err := session.ParseRole(role)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		DisplayName:  strings.TrimSpace(name),
		PasswordHash: string(hash),
		Role:         string(r),
		CreatedAt:    time.Now().UTC(),
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func runUsers(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	return printUsers(ctx, s, out)
}

func printUsers(ctx context.Context, users store.UserStore, out io.Writer) error {
	list, err := users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No users. Create one with: coven-identity seed -username NAME -password PASS")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tEMAIL\tCREATED")
	for _, u := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Role, u.Email, u.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runHealth(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.Addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
