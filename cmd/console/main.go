package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jwebster45206/isekai-engine/internal/config"
	"github.com/jwebster45206/isekai-engine/internal/content"
	"github.com/jwebster45206/isekai-engine/internal/logger"
	"github.com/jwebster45206/isekai-engine/internal/pipeline"
	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/internal/storage/sqlite"
	"github.com/jwebster45206/isekai-engine/internal/worker"
	"github.com/jwebster45206/isekai-engine/pkg/story"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// the TUI owns stdout, so logs go to a file
	logPath := getEnv("CONSOLE_LOG", filepath.Join(os.TempDir(), "isekai-console.log"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	log := logger.SetupWriter(cfg, logFile)

	ctx := context.Background()
	store, err := sqlite.Open(ctx, cfg.SQLitePath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	library, err := content.Load(ctx, cfg.ContentDir, log)
	if err != nil {
		return err
	}
	llm, err := services.NewLLMService(ctx, cfg, log)
	if err != nil {
		return err
	}
	proc := worker.NewProcessor(store, pipeline.New(llm, cfg, library, log), cfg.Engine.MaxTurnsPerDay, log)

	st, err := openStory(ctx, proc, store)
	if err != nil {
		return err
	}

	p := tea.NewProgram(NewConsoleUI(ctx, proc, store, st),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}

// openStory resumes STORY_ID, or starts a new story for PLAYER_ID.
func openStory(ctx context.Context, proc *worker.Processor, store *sqlite.Store) (*story.Story, error) {
	if raw := os.Getenv("STORY_ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid STORY_ID: %w", err)
		}
		return store.LoadStory(ctx, id)
	}
	raw := os.Getenv("PLAYER_ID")
	if raw == "" {
		return nil, errors.New("set STORY_ID to resume a story or PLAYER_ID to start one (create players with enginectl onboard)")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid PLAYER_ID: %w", err)
	}
	return proc.StartStory(ctx, id, nil, getEnv("BACKSTORY", ""), getEnv("TONE", ""))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
