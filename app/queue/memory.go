package queue

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process queue backed by a buffered channel.
type Memory struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	jobs     chan Job
	closed   bool
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory{
		inFlight: make(map[string]struct{}),
		jobs:     make(chan Job, capacity),
	}
}

func (q *Memory) Enqueue(ctx context.Context, job Job) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", ErrClosed
	}
	if _, ok := q.inFlight[job.ItemID]; ok {
		return AlreadyEnqueued, nil
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		q.inFlight[job.ItemID] = struct{}{}
		return Enqueued, nil
	default:
		return "", ErrQueueFull
	}
}

// Next blocks until a job is available, the context ends or the queue is closed.
func (q *Memory) Next(ctx context.Context) (Job, error) {
	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case job, ok := <-q.jobs:
		if !ok {
			return Job{}, ErrClosed
		}
		return job, nil
	}
}

// Done releases the in-flight marker of a finished job.
func (q *Memory) Done(ctx context.Context, job Job) error {
	q.mu.Lock()
	delete(q.inFlight, job.ItemID)
	q.mu.Unlock()
	return nil
}

func (q *Memory) Depth(ctx context.Context) (int64, error) {
	return int64(len(q.jobs)), nil
}

func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
