package scheduler

import (
	"context"
	"sync"

	"call-audit-go/internal/types"
)

// future resolves exactly once; later resolutions are dropped. onResolve
// runs before the waiter is released.
type future struct {
	once      sync.Once
	ch        chan types.JobResult
	onResolve func(types.JobResult)
}

func newFuture() *future {
	return &future{ch: make(chan types.JobResult, 1)}
}

func (f *future) resolve(res types.JobResult) bool {
	done := false
	f.once.Do(func() {
		if f.onResolve != nil {
			f.onResolve(res)
		}
		f.ch <- res
		done = true
	})
	return done
}

type entry struct {
	job types.Job
	fut *future
}

// Queue is an unbounded FIFO of pending jobs. Push never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []*entry
	wake   chan struct{}
	closed bool
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

func (q *Queue) push(e *entry) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrShuttingDown
	}
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// pop blocks until an entry is available, the queue is closed or ctx is done.
func (q *Queue) pop(ctx context.Context) (*entry, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrShuttingDown
		}
		if len(q.items) > 0 {
			e := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return e, nil
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close rejects further pushes and hands back whatever was still waiting.
func (q *Queue) close() []*entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	left := q.items
	q.items = nil

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return left
}
