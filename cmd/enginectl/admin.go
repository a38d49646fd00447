package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/isekai-engine/internal/content"
	"github.com/jwebster45206/isekai-engine/internal/onboarding"
	"github.com/jwebster45206/isekai-engine/internal/services"
)

var contentDir string

var migrateScenesCmd = &cobra.Command{
	Use:   "migrate-scenes",
	Short: "Wrap chapters that predate scenes in a single chapter-end scene",
	Long: `Finds chapters with no scenes and stores one scene per chapter.
Chapters that already have scenes are skipped, so the command can be re-run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := e.store.MigrateChaptersToScenes(ctx)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var reembedSkillsCmd = &cobra.Command{
	Use:   "reembed-skills",
	Short: "Replace hash-fallback skill embeddings with the configured provider's",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := onboarding.NewService(e.store, nil, e.log).Reembed(ctx, services.NewEmbedder(ctx, e.cfg, e.log))
		if err != nil {
			return err
		}
		fmt.Printf("re-embedded %d skills\n", n)
		return nil
	},
}

var validateContentCmd = &cobra.Command{
	Use:   "validate-content",
	Short: "Check the world context and boss templates, and the engine config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		dir := contentDir
		if dir == "" {
			dir = cfg.ContentDir
		}

		lib, err := content.Load(cmd.Context(), dir, log)
		if err != nil {
			return err
		}
		fmt.Printf("✓ world context: %d characters\n", len([]rune(lib.WorldContext())))
		for _, b := range lib.Bosses() {
			fmt.Printf("✓ %s (floor %d)\n", b.ID, b.Floor)
		}
		if len(lib.Bosses()) == 0 {
			fmt.Println("no boss templates found")
		}
		return nil
	},
}

func init() {
	validateContentCmd.Flags().StringVar(&contentDir, "dir", "", "content directory (default: CONTENT_DIR)")
}
