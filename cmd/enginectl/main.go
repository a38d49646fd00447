// Command enginectl is the operator CLI for the engine. It runs turns
// in-process against the configured SQLite store, or hands them to the queue.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/isekai-engine/internal/config"
	"github.com/jwebster45206/isekai-engine/internal/logger"
	"github.com/jwebster45206/isekai-engine/internal/storage/sqlite"
)

var (
	sqlitePath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "enginectl",
	Short:         "Operate the isekai narrative engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "db", "", "SQLite database path (default: SQLITE_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(onboardCmd, startCmd, continueCmd, chaptersCmd, enqueueCmd, migrateScenesCmd, reembedSkillsCmd, validateContentCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is the shared state built for each command.
type env struct {
	cfg   *config.Config
	log   *slog.Logger
	store *sqlite.Store
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	if sqlitePath != "" {
		cfg.SQLitePath = sqlitePath
	}
	// logs go to stderr so stdout stays machine-readable
	return cfg, logger.SetupWriter(cfg, os.Stderr), nil
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := sqlite.Open(ctx, cfg.SQLitePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return &env{cfg: cfg, log: log, store: store}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Error("Error closing storage", "error", err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
