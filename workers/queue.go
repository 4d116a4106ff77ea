package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/Dosada05/tournament-engine/models"
)

var (
	ErrQueueFull   = errors.New("generation queue is full")
	ErrQueueClosed = errors.New("generation queue is closed")
	// ErrNoTask is returned by Dequeue when nothing arrived before the poll
	// timeout. Callers just poll again.
	ErrNoTask = errors.New("no task available")
)

// Source is the consuming side of a generation queue.
type Source interface {
	Dequeue(ctx context.Context) (models.GenerationTask, error)
	Len(ctx context.Context) (int, error)
}

// ChannelQueue is an in-process queue for single-node deployments and tests.
// Enqueue never blocks; a full buffer is reported as ErrQueueFull so the
// caller can mark the job as failed instead of hanging.
type ChannelQueue struct {
	mu     sync.RWMutex
	tasks  chan models.GenerationTask
	closed bool
}

func NewChannelQueue(capacity int) *ChannelQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &ChannelQueue{tasks: make(chan models.GenerationTask, capacity)}
}

func (q *ChannelQueue) Enqueue(ctx context.Context, task models.GenerationTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *ChannelQueue) Dequeue(ctx context.Context) (models.GenerationTask, error) {
	select {
	case task, ok := <-q.tasks:
		if !ok {
			return models.GenerationTask{}, ErrQueueClosed
		}
		return task, nil
	case <-ctx.Done():
		return models.GenerationTask{}, ctx.Err()
	}
}

func (q *ChannelQueue) Len(context.Context) (int, error) {
	return len(q.tasks), nil
}

// Close stops accepting tasks. Tasks already buffered can still be drained.
func (q *ChannelQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
}
