package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const repairPendingKey = "jobs:reconcile:pending"

// RepairQueue schedules reconcile jobs. Requests made while a reconcile is
// already queued are folded into it.
type RepairQueue struct {
	client *redis.Client
	queue  *JobQueue
	delay  time.Duration
	ttl    time.Duration
}

// NewRepairQueue delays each reconcile by delay so a burst of failures is
// handled by one run.
func NewRepairQueue(client *redis.Client, delay time.Duration) *RepairQueue {
	ttl := delay + time.Minute
	return &RepairQueue{
		client: client,
		queue:  NewJobQueue(client),
		delay:  delay,
		ttl:    ttl,
	}
}

func (q *RepairQueue) ScheduleRepair(ctx context.Context, reason string) error {
	queued, err := q.client.SetNX(ctx, repairPendingKey, reason, q.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to mark reconcile pending: %w", err)
	}
	if !queued {
		return nil
	}

	payload := map[string]interface{}{"reason": reason}
	if err := q.queue.EnqueueAt(ctx, DefaultQueue, JobTypeReconcile, payload, time.Now().Add(q.delay)); err != nil {
		q.client.Del(ctx, repairPendingKey)
		return fmt.Errorf("failed to enqueue reconcile: %w", err)
	}
	return nil
}

// ReconcileHandler adapts fn to a JobHandler. The pending marker is cleared
// before fn runs so failures seen during the run schedule another one.
func (q *RepairQueue) ReconcileHandler(fn func(ctx context.Context) error) JobHandler {
	return func(ctx context.Context, job *Job) error {
		if err := q.client.Del(ctx, repairPendingKey).Err(); err != nil {
			return fmt.Errorf("failed to clear reconcile marker: %w", err)
		}
		return fn(ctx)
	}
}

// RunPeriodically calls fn every interval until ctx is done. Errors are
// logged and do not stop the loop.
func RunPeriodically(ctx context.Context, interval time.Duration, logger *slog.Logger, name string, fn func(ctx context.Context) error) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error("periodic job failed", "job", name, "error", err)
			}
		}
	}
}
