// Package worker runs background jobs from Redis lists. The service uses it to
// reconcile pending sets after a compensating write failed.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"task-tracker/backend/internal/models"
)

type JobType string

const (
	JobTypeReconcile JobType = "reconcile_assignments"
)

const (
	DefaultQueue = "jobs"
	RetryQueue   = "jobs:retry"
	DeadQueue    = "jobs:dead"
)

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type WorkerConfig struct {
	RedisClient *redis.Client
	// PollInterval bounds how long a worker blocks waiting for a job, and so
	// how long Stop may take.
	PollInterval time.Duration
	// RetryBaseDelay is doubled on every failed attempt.
	RetryBaseDelay time.Duration
	JobTimeout     time.Duration
	Queues         []string
	Logger         *slog.Logger
}

type Worker struct {
	client         *redis.Client
	handlers       map[JobType]JobHandler
	queues         []string
	pollInterval   time.Duration
	retryBaseDelay time.Duration
	jobTimeout     time.Duration
	logger         *slog.Logger
	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

func NewWorker(config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		client:         config.RedisClient,
		handlers:       make(map[JobType]JobHandler),
		queues:         config.Queues,
		pollInterval:   config.PollInterval,
		retryBaseDelay: config.RetryBaseDelay,
		jobTimeout:     config.JobTimeout,
		logger:         config.Logger,
		ctx:            ctx,
		cancel:         cancel,
	}
	if len(w.queues) == 0 {
		w.queues = []string{DefaultQueue, RetryQueue}
	}
	if w.pollInterval < time.Second {
		w.pollInterval = 5 * time.Second
	}
	if w.retryBaseDelay <= 0 {
		w.retryBaseDelay = 10 * time.Second
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = time.Minute
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

func (w *Worker) Start(concurrency int) {
	w.logger.Info("starting worker", "concurrency", concurrency, "queues", w.queues)

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}
}

// Stop cancels the workers and waits for in-flight jobs to finish or ctx to
// expire.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		if err := w.processNextJob(); err != nil && w.ctx.Err() == nil {
			w.logger.Error("error processing job", "error", err)
			w.sleep(time.Second)
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.ctx.Done():
	case <-time.After(d):
	}
}

func (w *Worker) processNextJob() error {
	result, err := w.client.BLPop(w.ctx, w.pollInterval, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || w.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	queue := result[0]
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	if wait := time.Until(job.ProcessAt); wait > 0 {
		if err := w.enqueueJob(queue, &job); err != nil {
			return err
		}
		w.sleep(min(wait, w.pollInterval))
		return nil
	}

	return w.executeJob(&job)
}

func (w *Worker) executeJob(job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return w.moveToDeadQueue(job, fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	logger := w.logger.With("job_id", job.ID, "job_type", job.Type)
	logger.Debug("processing job")

	// in-flight jobs finish even when Stop cancels the loop
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), w.jobTimeout)
	defer cancel()

	err := handler(ctx, job)
	if err == nil {
		logger.Debug("job completed")
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries {
		logger.Warn("job failed, retrying", "attempt", job.Attempts, "max_tries", job.MaxTries, "error", err)
		return w.retryJob(job)
	}

	logger.Error("job failed permanently", "attempts", job.Attempts, "error", err)
	return w.moveToDeadQueue(job, err)
}

func (w *Worker) retryJob(job *Job) error {
	delay := w.retryBaseDelay * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = time.Now().Add(delay)

	return w.enqueueJob(RetryQueue, job)
}

func (w *Worker) enqueueJob(queue string, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return w.client.RPush(context.WithoutCancel(w.ctx), queue, jobData).Err()
}

func (w *Worker) moveToDeadQueue(job *Job, jobErr error) error {
	deadJob := map[string]interface{}{
		"original_job": job,
		"error":        jobErr.Error(),
		"failed_at":    time.Now().UTC(),
	}

	deadJobData, err := json.Marshal(deadJob)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.client.RPush(context.WithoutCancel(w.ctx), DeadQueue, deadJobData).Err()
}

type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}) error {
	return q.EnqueueAt(ctx, queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) error {
	job := &Job{
		ID:        models.NewID(),
		Type:      jobType,
		Payload:   payload,
		Attempts:  0,
		MaxTries:  3,
		CreatedAt: time.Now().UTC(),
		ProcessAt: processAt.UTC(),
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return q.client.RPush(ctx, queue, jobData).Err()
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, queue).Result()
}
