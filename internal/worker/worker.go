package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/isekai-engine/internal/logger"
	"github.com/jwebster45206/isekai-engine/internal/services/events"
	"github.com/jwebster45206/isekai-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/isekai-engine/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second
	// DefaultMaxRequeues bounds lock-conflict re-queues before dead-lettering.
	DefaultMaxRequeues = 20
)

// Worker processes continuations from the queue, one at a time.
type Worker struct {
	id          string
	queue       *queue.ContinuationQueue
	lock        *queue.StoryLock
	processor   *Processor
	broadcaster *events.Broadcaster
	maxRequeues int
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(client *queue.Client, processor *Processor, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	if log == nil {
		log = slog.Default()
	}
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       queue.NewContinuationQueue(client),
		lock:        queue.NewStoryLock(client, workerID, queue.DefaultLockTTL),
		processor:   processor,
		broadcaster: events.NewBroadcaster(client.GetRedisClient(), log),
		maxRequeues: DefaultMaxRequeues,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the worker id, which is also the lock owner.
func (w *Worker) ID() string {
	return w.id
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	// Block waiting for next request (timeout after 5 seconds to check for shutdown)
	ctx, cancel := context.WithTimeout(w.ctx, workerTimeout+time.Second)
	defer cancel()

	req, err := w.queue.BlockingDequeueRequest(ctx, workerTimeout)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		return nil
	}

	w.log.Info("Received request from queue",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"story_id", req.StoryID.String(),
		"attempts", req.Attempts,
	)
	return w.handle(req)
}

// handle runs one dequeued request under the story lock.
func (w *Worker) handle(req *queuePkg.Request) error {
	locked, err := w.lock.Acquire(w.ctx, req.StoryID)
	if err != nil {
		return err
	}
	if !locked {
		// Another worker is writing this story; go to the back of the line.
		requeued, err := w.queue.Requeue(w.ctx, req, w.maxRequeues)
		if err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		if !requeued {
			w.log.Warn("Request dead-lettered after repeated lock conflicts",
				"request_id", req.RequestID, "story_id", req.StoryID.String(), "attempts", req.Attempts)
			w.publishFailure(req, "story is busy, request dropped")
			return nil
		}
		w.log.Info("Story locked, re-queued request",
			"worker_id", w.id, "request_id", req.RequestID, "story_id", req.StoryID.String())
		if err := w.broadcaster.PublishRequestRequeued(w.ctx, req.StoryID, req.RequestID, req.Attempts); err != nil {
			w.log.Error("Failed to publish requeued event", "error", err)
		}
		return nil
	}

	defer func() {
		if err := w.lock.Release(context.WithoutCancel(w.ctx), req.StoryID); err != nil {
			w.log.Error("Failed to release story lock", "error", err, "story_id", req.StoryID.String())
		}
	}()
	return w.processRequest(req)
}

// processRequest runs the pipeline and publishes the lifecycle events.
func (w *Worker) processRequest(req *queuePkg.Request) error {
	if req.Type != queuePkg.RequestTypeContinue {
		w.publishFailure(req, fmt.Sprintf("unknown request type: %s", req.Type))
		return fmt.Errorf("unknown request type: %s", req.Type)
	}

	start := time.Now()
	input := req.FreeText
	if input == "" {
		input = req.ChoiceID
	}
	if err := w.broadcaster.PublishRequestProcessing(w.ctx, req.StoryID, req.RequestID, input); err != nil {
		w.log.Error("Failed to publish processing event", "error", err)
	}

	log := logger.WithRequest(w.log, req.RequestID, req.StoryID)

	stop := w.keepLock(req.StoryID)
	resp, err := w.processor.Process(w.ctx, req.ContinueRequest())
	stop()
	if err != nil {
		logger.WithError(log, err).Error("Failed to process continuation")
		w.publishFailure(req, err.Error())
		return fmt.Errorf("failed to process continuation: %w", err)
	}

	if err := w.broadcaster.PublishChapterReady(w.ctx, req.StoryID, req.RequestID, resp.ChapterNumber, resp.Title); err != nil {
		w.log.Error("Failed to publish chapter event", "error", err)
	}
	duration := time.Since(start).Milliseconds()
	log.Info("Continuation processed successfully",
		"worker_id", w.id,
		"chapter", resp.ChapterNumber,
		"duration_ms", duration,
	)
	result := map[string]any{
		"chapter_number": resp.ChapterNumber,
		"title":          resp.Title,
		"critic_score":   resp.CriticScore,
		"rewrite_count":  resp.RewriteCount,
		"duration_ms":    duration,
	}
	if err := w.broadcaster.PublishRequestCompleted(w.ctx, req.StoryID, req.RequestID, result); err != nil {
		w.log.Error("Failed to publish completion event", "error", err)
	}
	return nil
}

// keepLock extends the story lock while a long run is in progress.
func (w *Worker) keepLock(storyID uuid.UUID) (stop func()) {
	ctx, cancel := context.WithCancel(w.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(queue.DefaultLockTTL / 3)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if ok, err := w.lock.Extend(ctx, storyID); err != nil || !ok {
					w.log.Warn("Story lock could not be extended", "error", err, "story_id", storyID.String())
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (w *Worker) publishFailure(req *queuePkg.Request, msg string) {
	if err := w.broadcaster.PublishRequestFailed(w.ctx, req.StoryID, req.RequestID, msg); err != nil {
		w.log.Error("Failed to publish failure event", "error", err)
	}
}
