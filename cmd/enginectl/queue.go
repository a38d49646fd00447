package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/isekai-engine/internal/services/events"
	"github.com/jwebster45206/isekai-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/isekai-engine/pkg/queue"
)

var (
	enqueueWait    bool
	enqueueTimeout time.Duration
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <story-id>",
	Short: "Queue a continuation for the workers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cr, err := continueRequest(args[0])
		if err != nil {
			return err
		}
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		client, err := queue.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return err
		}
		defer client.Close()

		broadcaster := events.NewBroadcaster(client.GetRedisClient(), log)
		var sub *events.Subscription
		if enqueueWait {
			// subscribe first so no event is missed
			sub, err = broadcaster.Subscribe(ctx, cr.StoryID)
			if err != nil {
				return err
			}
			defer sub.Close()
		}

		req := queuePkg.NewContinueRequest(cr)
		if err := queue.NewContinuationQueue(client).EnqueueRequest(ctx, req); err != nil {
			return err
		}
		if err := broadcaster.PublishRequestQueued(ctx, cr.StoryID, req.RequestID); err != nil {
			log.Warn("Failed to publish queued event", "error", err)
		}
		fmt.Println(req.RequestID)

		if sub == nil {
			return nil
		}
		timeout := time.After(enqueueTimeout)
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return fmt.Errorf("event stream closed")
				}
				if ev.RequestID != req.RequestID {
					continue
				}
				if err := printJSON(ev); err != nil {
					return err
				}
				if ev.Terminal() {
					if ev.Type == events.EventTypeRequestFailed {
						return fmt.Errorf("request failed: %v", ev.Data["error"])
					}
					return nil
				}
			case <-timeout:
				return fmt.Errorf("timed out after %s waiting for request %s", enqueueTimeout, req.RequestID)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	},
}

func init() {
	enqueueCmd.Flags().BoolVar(&enqueueWait, "wait", false, "follow the request's events until it completes")
	enqueueCmd.Flags().DurationVar(&enqueueTimeout, "timeout", 5*time.Minute, "how long --wait follows events")
}
