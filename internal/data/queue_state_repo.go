package data

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	queuePausedKey      = "crawld:queue:paused"
	queueNotifyGuardKey = "crawld:queue:notify_guard"
)

// QueueStateRepo coordinates cross-process queue state in Redis: the dispatch
// pause flag shared by every worker process, and the one-shot guard that
// keeps repeated /serverHealthCheck/notify calls from stacking alert timers.
type QueueStateRepo struct {
	client redis.UniversalClient
}

// NewQueueStateRepo creates a new QueueStateRepo with the given Redis client.
func NewQueueStateRepo(client redis.UniversalClient) *QueueStateRepo {
	return &QueueStateRepo{client: client}
}

// Pause stops dispatch of new jobs across all worker processes. In-flight
// jobs are unaffected.
func (r *QueueStateRepo) Pause(ctx context.Context) error {
	if err := r.client.Set(ctx, queuePausedKey, "1", 0).Err(); err != nil {
		return fmt.Errorf("set pause flag: %w", err)
	}
	return nil
}

// Resume clears the pause flag so workers dispatch again.
func (r *QueueStateRepo) Resume(ctx context.Context) error {
	if err := r.client.Del(ctx, queuePausedKey).Err(); err != nil {
		return fmt.Errorf("clear pause flag: %w", err)
	}
	return nil
}

// IsPaused reports whether dispatch is currently paused.
func (r *QueueStateRepo) IsPaused(ctx context.Context) (bool, error) {
	n, err := r.client.Exists(ctx, queuePausedKey).Result()
	if err != nil {
		return false, fmt.Errorf("check pause flag: %w", err)
	}
	return n > 0, nil
}

// ArmNotifyGuard atomically arms the one-shot deferred-alert guard using
// SET NX with a TTL. Returns false if a deferred check is already armed.
func (r *QueueStateRepo) ArmNotifyGuard(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, queueNotifyGuardKey, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("arm notify guard: %w", err)
	}
	return ok, nil
}
