package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsJobs(t *testing.T) {
	q := NewQueue(2, 10, time.Second, nil)
	q.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, q.Enqueue("count", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	require.True(t, q.Enqueue("fails", func(context.Context) error { return errors.New("boom") }))
	require.True(t, q.Enqueue("panics", func(context.Context) error { panic("bad job") }))
	require.True(t, q.Enqueue("after-panic", func(context.Context) error {
		ran.Add(1)
		return nil
	}))

	q.Stop()
	assert.EqualValues(t, 6, ran.Load())
	assert.False(t, q.Enqueue("late", func(context.Context) error { return nil }))

	// Stop is idempotent.
	q.Stop()
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1, 1, time.Second, nil)
	noop := func(context.Context) error { return nil }

	assert.True(t, q.Enqueue("first", noop))
	assert.False(t, q.Enqueue("second", noop))

	q.Start(context.Background())
	q.Stop()
}

func TestQueueJobTimeout(t *testing.T) {
	q := NewQueue(1, 1, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	cancel()

	var deadline atomic.Bool
	require.True(t, q.Enqueue("slow", func(ctx context.Context) error {
		<-ctx.Done()
		deadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}))
	q.Stop()
	assert.True(t, deadline.Load(), "jobs outlive the start context but not their own timeout")
}
