package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/isekai-engine/internal/content"
	"github.com/jwebster45206/isekai-engine/internal/onboarding"
	"github.com/jwebster45206/isekai-engine/internal/pipeline"
	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/internal/worker"
	"github.com/jwebster45206/isekai-engine/pkg/chat"
)

var (
	onboardUser    string
	onboardName    string
	onboardAnswers []string

	startTags      []string
	startBackstory string
	startTone      string

	continueChoice string
	continueText   string
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Create a player from quiz answers and generate their unique skill",
	Example: `  enginectl onboard --user u1 --name "Lâm Phong" --answers b,c,b,b,c`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		llm, err := services.NewLLMService(ctx, e.cfg, e.log)
		if err != nil {
			return err
		}
		gen := onboarding.NewSkillGenerator(llm, services.NewEmbedder(ctx, e.cfg, e.log), e.cfg.Models.Onboarding, e.log)
		p, err := onboarding.NewService(e.store, gen, e.log).Onboard(ctx, onboarding.Request{
			UserID:  onboardUser,
			Name:    onboardName,
			Answers: onboardAnswers,
		})
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

var startCmd = &cobra.Command{
	Use:   "start <player-id>",
	Short: "Start a new story for a player",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		playerID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid player id: %w", err)
		}
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		// starting a story runs no agents
		proc := worker.NewProcessor(e.store, nil, 0, e.log)
		st, err := proc.StartStory(ctx, playerID, startTags, startBackstory, startTone)
		if err != nil {
			return err
		}
		return printJSON(st)
	},
}

var continueCmd = &cobra.Command{
	Use:   "continue <story-id>",
	Short: "Write the next chapter in-process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := continueRequest(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		proc, err := newProcessor(ctx, e)
		if err != nil {
			return err
		}
		resp, err := proc.Process(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters <story-id>",
	Short: "List the chapters of a story",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storyID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid story id: %w", err)
		}
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		chapters, err := e.store.ListChapters(ctx, storyID)
		if err != nil {
			return err
		}
		for _, c := range chapters {
			fmt.Printf("%3d  %-40s  score=%.1f rewrites=%d\n", c.ChapterNumber, c.Title, c.CriticScore, c.RewriteCount)
		}
		return nil
	},
}

func init() {
	onboardCmd.Flags().StringVar(&onboardUser, "user", "", "account id")
	onboardCmd.Flags().StringVar(&onboardName, "name", "", "character name")
	onboardCmd.Flags().StringSliceVar(&onboardAnswers, "answers", nil, "quiz option ids, one per question")
	_ = onboardCmd.MarkFlagRequired("user")
	_ = onboardCmd.MarkFlagRequired("name")
	_ = onboardCmd.MarkFlagRequired("answers")

	startCmd.Flags().StringSliceVar(&startTags, "tags", nil, "preference tags")
	startCmd.Flags().StringVar(&startBackstory, "backstory", "", "optional backstory")
	startCmd.Flags().StringVar(&startTone, "tone", "", "narrative tone")

	for _, c := range []*cobra.Command{continueCmd, enqueueCmd} {
		c.Flags().StringVar(&continueChoice, "choice", "", "choice id from the latest chapter")
		c.Flags().StringVar(&continueText, "text", "", "free-form action")
		c.MarkFlagsMutuallyExclusive("choice", "text")
		c.MarkFlagsOneRequired("choice", "text")
	}
}

func continueRequest(rawStoryID string) (chat.ContinueRequest, error) {
	storyID, err := uuid.Parse(rawStoryID)
	if err != nil {
		return chat.ContinueRequest{}, fmt.Errorf("invalid story id: %w", err)
	}
	req := chat.ContinueRequest{
		StoryID:  storyID,
		ChoiceID: strings.TrimSpace(continueChoice),
		FreeText: continueText,
	}
	return req, req.Validate()
}

// newProcessor wires the full pipeline the way the worker does.
func newProcessor(ctx context.Context, e *env) (*worker.Processor, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	library, err := content.Load(ctx, e.cfg.ContentDir, e.log)
	if err != nil {
		return nil, err
	}
	llm, err := services.NewLLMService(ctx, e.cfg, e.log)
	if err != nil {
		return nil, err
	}
	orch := pipeline.New(llm, e.cfg, library, e.log)
	return worker.NewProcessor(e.store, orch, e.cfg.Engine.MaxTurnsPerDay, e.log), nil
}
