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

var errTransient = errors.New("transient")

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) ObserveJob(_ string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *outcomeRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func TestQueueProcessesJobs(t *testing.T) {
	var sum atomic.Int64
	q := NewQueue("sum", func(_ context.Context, job Job[int]) error {
		sum.Add(int64(job.Payload))
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 1; i <= 4; i++ {
		require.NoError(t, q.Enqueue(Job[int]{Type: "add", Payload: i}))
	}
	require.Eventually(t, func() bool { return sum.Load() == 10 }, time.Second, 5*time.Millisecond)
}

func TestQueueRetriesRetryableFailures(t *testing.T) {
	var calls atomic.Int32
	recorder := &outcomeRecorder{}
	q := NewQueue("retry", func(_ context.Context, job Job[string]) error {
		if calls.Add(1) < 3 {
			return errTransient
		}
		return nil
	}, QueueConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Retryable:  func(err error) bool { return errors.Is(err, errTransient) },
		Observer:   recorder,
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[string]{Payload: "x"}))
	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"retried", "retried", "succeeded"}, recorder.snapshot())
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueueDoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	recorder := &outcomeRecorder{}
	q := NewQueue("permanent", func(context.Context, Job[string]) error {
		calls.Add(1)
		return errors.New("constraint violation")
	}, QueueConfig{
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
		Retryable:  func(err error) bool { return errors.Is(err, errTransient) },
		Observer:   recorder,
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[string]{Payload: "x"}))
	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"failed"}, recorder.snapshot())
	assert.Equal(t, int32(1), calls.Load())
}

func TestQueueDropsAfterMaxRetries(t *testing.T) {
	recorder := &outcomeRecorder{}
	q := NewQueue("drop", func(context.Context, Job[string]) error {
		return errTransient
	}, QueueConfig{MaxRetries: 1, RetryDelay: time.Millisecond, Observer: recorder})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[string]{Payload: "x"}))
	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"retried", "dropped"}, recorder.snapshot())
}

func TestQueueRejectsBeforeStartAndAfterStop(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job[int]) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job[int]{}))

	q.Start(context.Background())
	q.Stop()
	assert.Error(t, q.Enqueue(Job[int]{}))
}

func TestQueueDrainFinishesAcceptedJobs(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	q := NewQueue("drain", func(_ context.Context, job Job[int]) error {
		<-release
		if calls.Add(1) == 1 {
			return errTransient
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4, MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job[int]{Payload: i}))
	}

	done := make(chan error, 1)
	go func() { done <- q.Drain(context.Background()) }()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.draining
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, q.Enqueue(Job[int]{}), ErrDraining)
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not finish")
	}
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, int64(0), q.pending.Load())
}

func TestQueueDrainGivesUpWhenContextEnds(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	q := NewQueue("stuck", func(ctx context.Context, _ Job[int]) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job[int]{Payload: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Drain(ctx), context.DeadlineExceeded)
	assert.Error(t, q.Enqueue(Job[int]{}))
	q.Stop()
}
