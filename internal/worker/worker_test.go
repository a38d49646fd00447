package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/isekai-engine/internal/services/events"
	"github.com/jwebster45206/isekai-engine/internal/services/queue"
	"github.com/jwebster45206/isekai-engine/pkg/chat"
	queuePkg "github.com/jwebster45206/isekai-engine/pkg/queue"
)

func setupTestRedis(t *testing.T) *queue.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client, err := queue.NewClient(context.Background(), mr.Addr(), discardLogger())
	if err != nil {
		t.Fatalf("Failed to create queue client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func subscribe(t *testing.T, client *queue.Client, f *fixture) *events.Subscription {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sub, err := events.NewBroadcaster(client.GetRedisClient(), discardLogger()).Subscribe(ctx, f.story.ID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func nextEvent(t *testing.T, sub *events.Subscription) events.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

func newContinue(f *fixture) *queuePkg.Request {
	return queuePkg.NewContinueRequest(chat.ContinueRequest{
		StoryID:  f.story.ID,
		PlayerID: f.pl.ID,
		FreeText: "Tôi bước vào rừng",
	})
}

func TestWorker_ProcessesRequest(t *testing.T) {
	client := setupTestRedis(t)
	f := newFixture(t, 0)
	sub := subscribe(t, client, f)
	w := New(client, f.proc, discardLogger(), "worker-test")

	req := newContinue(f)
	require.NoError(t, w.handle(req))

	assert.Equal(t, events.EventTypeRequestProcessing, nextEvent(t, sub).Type)
	ready := nextEvent(t, sub)
	assert.Equal(t, events.EventTypeChapterReady, ready.Type)
	done := nextEvent(t, sub)
	assert.Equal(t, events.EventTypeRequestCompleted, done.Type)
	assert.Equal(t, req.RequestID, done.RequestID)
	assert.True(t, done.Terminal())
	assert.EqualValues(t, 1, done.Data["result"].(map[string]any)["chapter_number"])

	// lock released
	other := queue.NewStoryLock(client, "other", queue.DefaultLockTTL)
	ok, err := other.Acquire(context.Background(), f.story.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWorker_RequeuesWhenStoryLocked(t *testing.T) {
	client := setupTestRedis(t)
	f := newFixture(t, 0)
	sub := subscribe(t, client, f)
	w := New(client, f.proc, discardLogger(), "worker-test")
	ctx := context.Background()

	holder := queue.NewStoryLock(client, "holder", queue.DefaultLockTTL)
	ok, err := holder.Acquire(ctx, f.story.ID)
	require.NoError(t, err)
	require.True(t, ok)

	before := len(f.store.Writes())
	require.NoError(t, w.handle(newContinue(f)))

	assert.Equal(t, events.EventTypeRequestRequeued, nextEvent(t, sub).Type)
	q := queue.NewContinuationQueue(client)
	depth, err := q.RequestQueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	requeued, err := q.DequeueRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued.Attempts)
	assert.Len(t, f.store.Writes(), before, "a locked story is not written")
}

func TestWorker_DeadLettersAfterMaxRequeues(t *testing.T) {
	client := setupTestRedis(t)
	f := newFixture(t, 0)
	sub := subscribe(t, client, f)
	w := New(client, f.proc, discardLogger(), "worker-test")
	w.maxRequeues = 1
	ctx := context.Background()

	holder := queue.NewStoryLock(client, "holder", queue.DefaultLockTTL)
	_, err := holder.Acquire(ctx, f.story.ID)
	require.NoError(t, err)

	req := newContinue(f)
	req.Attempts = 1
	require.NoError(t, w.handle(req))

	assert.Equal(t, events.EventTypeRequestFailed, nextEvent(t, sub).Type)
	dead, err := queue.NewContinuationQueue(client).DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, req.RequestID, dead[0].RequestID)
}

func TestWorker_ProcessorErrorPublishesFailure(t *testing.T) {
	client := setupTestRedis(t)
	f := newFixture(t, 0)
	sub := subscribe(t, client, f)
	w := New(client, f.proc, discardLogger(), "worker-test")

	req := newContinue(f)
	req.FreeText = ""
	req.ChoiceID = "ch9_c1"
	require.ErrorIs(t, w.handle(req), ErrUnknownChoice)

	assert.Equal(t, events.EventTypeRequestProcessing, nextEvent(t, sub).Type)
	assert.Equal(t, events.EventTypeRequestFailed, nextEvent(t, sub).Type)
}

func TestWorker_StartStop(t *testing.T) {
	client := setupTestRedis(t)
	f := newFixture(t, 0)
	sub := subscribe(t, client, f)
	w := New(client, f.proc, discardLogger(), "")
	assert.NotEmpty(t, w.ID())

	require.NoError(t, queue.NewContinuationQueue(client).EnqueueRequest(context.Background(), newContinue(f)))

	done := make(chan error, 1)
	go func() { done <- w.Start() }()

	for {
		ev := nextEvent(t, sub)
		if ev.Terminal() {
			assert.Equal(t, events.EventTypeRequestCompleted, ev.Type)
			break
		}
	}

	w.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}
}
