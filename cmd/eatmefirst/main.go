package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/eatmefirst/internal/api"
	"github.com/erazemk/eatmefirst/internal/auth"
	"github.com/erazemk/eatmefirst/internal/config"
	"github.com/erazemk/eatmefirst/internal/db"
	"github.com/erazemk/eatmefirst/internal/imaging"
	"github.com/erazemk/eatmefirst/internal/lookup"
	"github.com/erazemk/eatmefirst/internal/metrics"
	"github.com/erazemk/eatmefirst/internal/model"
	"github.com/erazemk/eatmefirst/internal/pantry"
	"github.com/erazemk/eatmefirst/internal/reminder"
	"github.com/erazemk/eatmefirst/internal/store"
)

func main() {
	fs := flag.NewFlagSet("eatmefirst", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	var dbPath string
	fs.StringVar(&dbPath, "db", "", "")
	fs.StringVar(&dbPath, "d", "", "")

	var addr string
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: eatmefirst [flags]

Flags:
  -c, -config <path>      YAML config file (default: $CONFIG_PATH or ./eatmefirst.yaml)
  -d, -db <path>          SQLite database path (overrides database.path)
  -a, -addr <host:port>   listen address (overrides server.addr)
  -l, -log <path>         log file path (overrides log.file)
  -h, -help               show this help and exit
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if logPath != "" {
		cfg.Log.File = logPath
	}

	log, closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	s := store.New(database)
	if err := ensureAdmin(ctx, s, cfg.Auth.AdminUser); err != nil {
		return err
	}

	// JWT secret is generated on first run and kept in the database.
	jwtSecret, err := s.GetJWTSecret(ctx)
	if err != nil {
		return fmt.Errorf("loading JWT secret: %w", err)
	}

	m := metrics.New()
	svc := pantry.New(s,
		pantry.WithThreshold(cfg.Inventory.ExpiringSoonDays),
		pantry.WithLogger(log),
		pantry.WithMetrics(m),
	)
	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing inventory: %w", err)
	}

	var products api.ProductLookup
	if !cfg.Lookup.Disabled {
		products = lookup.NewClientWithURL(cfg.Lookup.BaseURL, cfg.Lookup.Timeout, log)
	}

	if !strings.EqualFold(cfg.Reminder.Notifier, config.NotifierNone) {
		scheduler := reminder.NewScheduler(svc, reminder.NewLogNotifier(log), log,
			reminder.WithHour(cfg.Reminder.Hour),
			reminder.WithThreshold(cfg.Inventory.ExpiringSoonDays),
			reminder.WithState(s),
			reminder.WithObserver(m),
		)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	router := api.NewRouter(api.Deps{
		Store:   s,
		Pantry:  svc,
		Tokens:  auth.NewTokens(jwtSecret, cfg.Auth.TokenTTL),
		Photos:  imaging.NewProcessor(),
		Lookup:  products,
		Metrics: m.Handler(),
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.LoggingMiddleware(log)(router),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server stopped, closing database")
	return nil
}

// ensureAdmin creates the admin account on first run and prints its password.
func ensureAdmin(ctx context.Context, s *store.Store, username string) error {
	n, err := s.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		return nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if _, err := s.CreateUser(ctx, username, string(hash), model.RoleAdmin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	printInitResult(username, password)
	return nil
}

// printInitResult prints the first-run admin credentials to stdout.
func printInitResult(username, password string) {
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
