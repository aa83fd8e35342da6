package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	done := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		done <- job
		return nil
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "cleanup", Payload: "proofs/a.pdf"}))

	select {
	case job := <-done:
		require.Equal(t, 2, job.Attempt)
		require.NotEmpty(t, job.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to completion")
	}
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	abandoned := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		return errors.New("denied")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond, OnGiveUp: func(job Job, err error) {
		abandoned <- job
	}})

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job{Type: "cleanup", Payload: "proofs/b.pdf"}))

	select {
	case job := <-abandoned:
		assert.Equal(t, 3, job.Attempt)
		assert.Equal(t, "proofs/b.pdf", job.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never abandoned")
	}
	assert.Equal(t, int64(0), q.Pending())
}

func TestQueueBackoffDoublesAndCaps(t *testing.T) {
	q := NewQueue("backoff", nil, QueueConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second})
	assert.Equal(t, time.Second, q.backoff(1))
	assert.Equal(t, 2*time.Second, q.backoff(2))
	assert.Equal(t, 4*time.Second, q.backoff(3))
	assert.Equal(t, 5*time.Second, q.backoff(4))
	assert.Equal(t, 5*time.Second, q.backoff(10))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	require.ErrorIs(t, q.Enqueue(Job{Type: "noop"}), ErrNotStarted)
	assert.Zero(t, q.Pending())
}

func TestQueueRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{Type: "a"}))
	require.Eventually(t, func() bool { return len(q.jobs) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(Job{Type: "b"}))
	require.ErrorIs(t, q.Enqueue(Job{Type: "c"}), ErrFull)
}
