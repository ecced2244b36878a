package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	done := make(chan Job, 1)
	q := NewQueue("exports", func(_ context.Context, job Job) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		done <- job
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "attendance"}))

	select {
	case job := <-done:
		assert.Equal(t, 3, job.Attempt)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job did not complete")
	}
}

func TestQueueReportsExhaustedJobs(t *testing.T) {
	var mu sync.Mutex
	var failed []string
	finished := make(chan struct{})
	q := NewQueue("exports", func(context.Context, Job) error {
		return backoff.Permanent(errors.New("bad params"))
	}, QueueConfig{
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
		OnFailure: func(_ context.Context, job Job, err error) {
			mu.Lock()
			failed = append(failed, job.ID)
			mu.Unlock()
			assert.EqualError(t, err, "bad params")
			assert.Equal(t, 1, job.Attempt)
			close(finished)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-2"}))

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("failure handler not called")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"job-2"}, failed)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("exports", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{ID: "x"}), ErrNotStarted)

	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{ID: "y"}), ErrNotStarted)
}
