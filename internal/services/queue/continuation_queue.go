package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/isekai-engine/pkg/queue"
)

const (
	requestsKey   = "continuations"
	deadLetterKey = "continuations:dead"
)

// ContinuationQueue is the global FIFO of continuation requests shared by all
// workers.
type ContinuationQueue struct {
	client *Client
}

func NewContinuationQueue(client *Client) *ContinuationQueue {
	return &ContinuationQueue{client: client}
}

// EnqueueRequest appends a request to the tail of the queue.
func (q *ContinuationQueue) EnqueueRequest(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, requestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	return nil
}

// DequeueRequest removes and returns the next request.
// Returns nil if queue is empty
func (q *ContinuationQueue) DequeueRequest(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	return parseRequest(result)
}

// BlockingDequeueRequest waits up to timeout for a request. A timeout or a
// finished context yields (nil, nil).
func (q *ContinuationQueue) BlockingDequeueRequest(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parseRequest(result[1])
}

// Requeue puts a request back at the tail after a lock conflict. Requests
// that exceed maxAttempts go to the dead-letter list instead; the return
// value reports whether the request was requeued.
func (q *ContinuationQueue) Requeue(ctx context.Context, req *queue.Request, maxAttempts int) (bool, error) {
	req.Attempts++
	if maxAttempts > 0 && req.Attempts > maxAttempts {
		data, err := req.ToJSON()
		if err != nil {
			return false, fmt.Errorf("failed to serialize request: %w", err)
		}
		if err := q.client.rdb.RPush(ctx, deadLetterKey, data).Err(); err != nil {
			return false, fmt.Errorf("failed to dead-letter request: %w", err)
		}
		return false, nil
	}
	return true, q.EnqueueRequest(ctx, req)
}

// RequestQueueDepth returns the number of pending requests.
func (q *ContinuationQueue) RequestQueueDepth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}

// DeadLetters returns dead-lettered requests without removing them.
func (q *ContinuationQueue) DeadLetters(ctx context.Context) ([]*queue.Request, error) {
	raw, err := q.client.rdb.LRange(ctx, deadLetterKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	out := make([]*queue.Request, 0, len(raw))
	for _, r := range raw {
		req, err := parseRequest(r)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func parseRequest(raw string) (*queue.Request, error) {
	req, err := queue.FromJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}
