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

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool)
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.Payload] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: p, Type: "t", Payload: p}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	succeeded := make(chan struct{})
	q := NewQueue("retry", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(succeeded)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	select {
	case <-succeeded:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueRejectsWhenNotRunning(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "1"}))

	q.Start(context.Background())
	q.Stop()
	assert.Error(t, q.Enqueue(Job{ID: "2"}))
	q.Stop()
}

func TestQueueReportsFullBuffer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("full", func(context.Context, Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "busy"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))
	err := q.Enqueue(Job{ID: "overflow"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, q.Pending())

	close(release)
	q.Stop()
}

func TestQueueDrainsBufferedJobsOnStop(t *testing.T) {
	var processed int32
	gate := make(chan struct{})
	q := NewQueue("drain", func(context.Context, Job) error {
		<-gate
		atomic.AddInt32(&processed, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "j"}))
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(gate)
	}()
	q.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&processed))
}
