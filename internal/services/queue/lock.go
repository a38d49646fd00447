package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed worker can hold a story.
const DefaultLockTTL = 30 * time.Second

// Only delete if we own the lock.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// StoryLock serialises continuations of the same story across workers.
type StoryLock struct {
	client *Client
	owner  string
	ttl    time.Duration
}

func NewStoryLock(client *Client, owner string, ttl time.Duration) *StoryLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &StoryLock{client: client, owner: owner, ttl: ttl}
}

func lockKey(storyID uuid.UUID) string {
	return fmt.Sprintf("story-lock:%s", storyID.String())
}

// Acquire returns false when another owner holds the story.
func (l *StoryLock) Acquire(ctx context.Context, storyID uuid.UUID) (bool, error) {
	ok, err := l.client.rdb.SetNX(ctx, lockKey(storyID), l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire story lock: %w", err)
	}
	return ok, nil
}

// Extend refreshes the TTL while a long pipeline run is still going.
func (l *StoryLock) Extend(ctx context.Context, storyID uuid.UUID) (bool, error) {
	n, err := extendScript.Run(ctx, l.client.rdb, []string{lockKey(storyID)}, l.owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to extend story lock: %w", err)
	}
	return n == 1, nil
}

// Release deletes the lock if this owner still holds it.
func (l *StoryLock) Release(ctx context.Context, storyID uuid.UUID) error {
	if err := releaseScript.Run(ctx, l.client.rdb, []string{lockKey(storyID)}, l.owner).Err(); err != nil {
		return fmt.Errorf("failed to release story lock: %w", err)
	}
	return nil
}
