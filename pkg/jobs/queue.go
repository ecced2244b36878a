package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrNotStarted is returned by Enqueue before Start or after Stop.
var ErrNotStarted = errors.New("queue not started")

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. Returning backoff.Permanent stops retries.
type Handler func(context.Context, Job) error

// FailureHandler is told about jobs that exhausted their retries.
type FailureHandler func(context.Context, Job, error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	OnFailure  FailureHandler
	Logger     *zap.Logger
}

// Queue dispatches jobs to a bounded pond worker pool and retries failures
// with exponential backoff.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	mu     sync.Mutex
	pool   pond.Pool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{name: name, handler: handler, cfg: cfg, logger: cfg.Logger}
}

// Start creates the worker pool. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pool != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.pool = pond.NewPool(q.cfg.Workers, pond.WithQueueSize(q.cfg.BufferSize), pond.WithContext(q.ctx))
	q.logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Stop cancels pending retries and waits for running jobs to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	pool := q.pool
	cancel := q.cancel
	q.pool = nil
	q.mu.Unlock()
	if pool == nil {
		return
	}
	cancel()
	pool.StopAndWait()
	q.logger.Info("queue stopped", zap.String("queue", q.name))
}

// Enqueue submits a job. It blocks while the buffer is full and fails when the
// queue is not running.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	pool := q.pool
	ctx := q.ctx
	q.mu.Unlock()

	if pool == nil {
		return fmt.Errorf("queue %s: %w", q.name, ErrNotStarted)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	if err := pool.Go(func() { q.run(ctx, job) }); err != nil {
		return fmt.Errorf("queue %s: %w", q.name, err)
	}
	return nil
}

func (q *Queue) run(ctx context.Context, job Job) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.cfg.RetryDelay
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(q.cfg.MaxRetries)), ctx)

	operation := func() error {
		job.Attempt++
		return q.handler(ctx, job)
	}
	notify := func(err error, next time.Duration) {
		q.logger.Warn("job failed, retrying",
			zap.String("queue", q.name),
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Int("attempt", job.Attempt),
			zap.Duration("next_retry_in", next),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		q.logger.Error("job failed",
			zap.String("queue", q.name),
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Int("attempts", job.Attempt),
			zap.Error(err),
		)
		if q.cfg.OnFailure != nil {
			q.cfg.OnFailure(context.WithoutCancel(ctx), job, err)
		}
	}
}
