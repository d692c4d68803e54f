package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/threadkeep/threadkeep/datalayer"
	"github.com/threadkeep/threadkeep/internal/auditlog"
	"github.com/threadkeep/threadkeep/internal/config"
	"github.com/threadkeep/threadkeep/internal/metrics"
	"github.com/threadkeep/threadkeep/store"

	_ "github.com/threadkeep/threadkeep/store/mongostore"
	_ "github.com/threadkeep/threadkeep/store/sqlitestore"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
	// Commit is set via -ldflags at build time.
	Commit = "unknown"
	// BuildTime is set via -ldflags at build time.
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "init":
		initCmd(os.Args[2:])
	case "indexes":
		indexesCmd(os.Args[2:])
	case "seed-user":
		seedUserCmd(os.Args[2:])
	case "dump-thread":
		dumpThreadCmd(os.Args[2:])
	case "delete-thread":
		deleteThreadCmd(os.Args[2:])
	case "version":
		fmt.Printf("threadkeep %s (%s) %s\n", Version, Commit, BuildTime)
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `threadkeep

Usage:
  threadkeep init [flags]
  threadkeep indexes [flags]
  threadkeep seed-user -identifier <id> [flags]
  threadkeep dump-thread -thread <id> [flags]
  threadkeep delete-thread -thread <id> [flags]
  threadkeep version

Commands:
  init           Write a config file with the given database settings.
  indexes        Ensure the backend's indexes exist.
  seed-user      Create (or fetch) a user by identifier.
  dump-thread    Print a thread with its steps as JSON.
  delete-thread  Cascade-delete a thread and print what was removed.
  version        Print build information.

`)
}

func initCmd(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	dbURL := fs.String("db-url", "", "Database URL (mongodb://... or a sqlite path)")
	dbName := fs.String("db-name", "", "Database name (server backends only)")
	auditDir := fs.String("audit-dir", "", "Audit trail directory (empty: disabled)")
	logFormat := fs.String("log-format", "json", "Log format: json|text")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	_ = fs.Parse(args)

	if *dbURL == "" {
		fs.Usage()
		os.Exit(2)
	}

	cfg := &config.Config{
		DatabaseURL:  *dbURL,
		DatabaseName: *dbName,
		AuditDir:     *auditDir,
		LogFormat:    *logFormat,
		LogLevel:     *logLevel,
	}
	if err := config.Save(filepath.Clean(*cfgPath), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written: %s\n", filepath.Clean(*cfgPath))
}

func indexesCmd(args []string) {
	fs := flag.NewFlagSet("indexes", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	timeout := fs.Duration("timeout", 30*time.Second, "Operation timeout")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dl, _, cleanup := mustOpen(ctx, *cfgPath)
	defer cleanup()

	if err := dl.EnsureIndexes(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ensure indexes failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Indexes ensured.")
}

func seedUserCmd(args []string) {
	fs := flag.NewFlagSet("seed-user", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	identifier := fs.String("identifier", "", "User identifier (case-folded to lowercase)")
	metadataJSON := fs.String("metadata", "", "User metadata as a JSON object")
	timeout := fs.Duration("timeout", 30*time.Second, "Operation timeout")
	_ = fs.Parse(args)

	if strings.TrimSpace(*identifier) == "" {
		fs.Usage()
		os.Exit(2)
	}
	var metadata map[string]any
	if strings.TrimSpace(*metadataJSON) != "" {
		if err := json.Unmarshal([]byte(*metadataJSON), &metadata); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -metadata: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dl, _, cleanup := mustOpen(ctx, *cfgPath)
	defer cleanup()

	u, err := dl.CreateUser(ctx, datalayer.User{Identifier: *identifier, Metadata: metadata})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed user failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(u)
}

func dumpThreadCmd(args []string) {
	fs := flag.NewFlagSet("dump-thread", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	threadID := fs.String("thread", "", "Thread id")
	timeout := fs.Duration("timeout", 30*time.Second, "Operation timeout")
	_ = fs.Parse(args)

	if strings.TrimSpace(*threadID) == "" {
		fs.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dl, _, cleanup := mustOpen(ctx, *cfgPath)
	defer cleanup()

	t, err := dl.GetThread(ctx, *threadID, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "get thread failed: %v\n", err)
		os.Exit(1)
	}
	if t == nil {
		fmt.Fprintf(os.Stderr, "thread not found: %s\n", *threadID)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Debug URL: %s\n", dl.BuildDebugURL(*threadID))
	printJSON(t)
}

func deleteThreadCmd(args []string) {
	fs := flag.NewFlagSet("delete-thread", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	threadID := fs.String("thread", "", "Thread id")
	timeout := fs.Duration("timeout", 30*time.Second, "Operation timeout")
	_ = fs.Parse(args)

	if strings.TrimSpace(*threadID) == "" {
		fs.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dl, _, cleanup := mustOpen(ctx, *cfgPath)
	defer cleanup()

	result, err := dl.DeleteThread(ctx, *threadID)
	if err != nil && !errors.Is(err, datalayer.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "delete thread failed: %v\n", err)
		os.Exit(1)
	}
	if errors.Is(err, datalayer.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "thread not found: %s\n", *threadID)
	}
	printJSON(result)
}

// mustOpen loads the config, builds the observed data layer and returns it
// with a cleanup func. Exits on failure.
func mustOpen(ctx context.Context, cfgPath string) (datalayer.DataLayer, *slog.Logger, func()) {
	cfg, err := config.Load(filepath.Clean(cfgPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogFormat, cfg.LogLevel)

	inner, err := store.Open(ctx, store.Options{
		URL:              cfg.DatabaseURL,
		DBName:           cfg.DatabaseName,
		Logger:           logger,
		DebugURLTemplate: cfg.DebugURLTemplate,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}

	var audit *auditlog.Store
	if strings.TrimSpace(cfg.AuditDir) != "" {
		audit, err = auditlog.New(auditlog.Options{Dir: cfg.AuditDir, Logger: logger})
		if err != nil {
			_ = inner.Close()
			fmt.Fprintf(os.Stderr, "failed to open audit trail: %v\n", err)
			os.Exit(1)
		}
	}

	dl := datalayer.NewObserved(inner, metrics.New(), audit)
	return dl, logger, func() { _ = dl.Close() }
}

func newLogger(format string, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(strings.TrimSpace(format)) == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}
