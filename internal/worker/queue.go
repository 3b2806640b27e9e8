package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type job struct {
	name string
	run  func(context.Context) error
}

// Queue runs jobs on a fixed pool of goroutines. Enqueue never blocks; a full
// queue drops the job.
type Queue struct {
	jobs    chan job
	workers int
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue creates a queue with the given pool size and buffer capacity.
// Each job gets timeout to finish.
func NewQueue(workers, capacity int, timeout time.Duration, logger *zap.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 100
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		jobs:    make(chan job, capacity),
		workers: workers,
		timeout: timeout,
		logger:  logger,
	}
}

// Start launches the workers. They exit once Stop drains the queue.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for j := range q.jobs {
				q.run(ctx, j)
			}
		}()
	}
}

func (q *Queue) run(parent context.Context, j job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()
	if err := j.run(ctx); err != nil {
		q.logger.Debug("job failed", zap.String("job", j.name), zap.Error(err))
	}
}

// Enqueue schedules fn and reports whether it was accepted.
func (q *Queue) Enqueue(name string, fn func(context.Context) error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.jobs <- job{name: name, run: fn}:
		return true
	default:
		q.logger.Warn("job queue full, dropping job", zap.String("job", name))
		return false
	}
}

// Stop refuses new jobs and waits for queued ones to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}
