package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("events", func(context.Context, Job) error { return nil }, QueueConfig{})

	assert.ErrorContains(t, q.TryEnqueue(Job{ID: "1"}), "not started")
	assert.ErrorContains(t, q.Enqueue(Job{ID: "1"}), "not started")
	q.Stop()
}

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{}, 2)

	q := NewQueue("events", func(ctx context.Context, job Job) error {
		mu.Lock()
		seen[job.ID] = !job.Enqueued.IsZero()
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.TryEnqueue(Job{ID: "b"}))
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]bool{"a": true, "b": true}, seen)
}

func TestQueueTryEnqueueReportsFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("events", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job{ID: "running"}))
	<-started
	require.NoError(t, q.TryEnqueue(Job{ID: "buffered"}))

	err := q.TryEnqueue(Job{ID: "overflow"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	q.Stop()
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("events", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.TryEnqueue(Job{ID: "flaky"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	var handled int32
	block := make(chan struct{})
	q := NewQueue("events", func(ctx context.Context, job Job) error {
		if job.ID == "first" {
			<-block
		}
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job{ID: "first"}))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.TryEnqueue(Job{ID: "second"}))
	require.NoError(t, q.TryEnqueue(Job{ID: "third"}))

	close(block)
	q.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&handled))
	assert.Error(t, q.TryEnqueue(Job{ID: "late"}))
}
