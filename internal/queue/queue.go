// Package queue provides a single-flight sequential executor. Heavy disk
// operations are funneled through one Queue so they never run concurrently
// with each other.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrCanceled is returned to waiters whose work was discarded by CancelAll
// before it started.
var ErrCanceled = errors.New("queue: task canceled before start")

type task struct {
	run  func()
	err  error
	done chan struct{}
}

// Queue executes submitted work strictly FIFO, at most one item at a time.
// The drain loop starts on first enqueue and exits once the queue is empty;
// a later enqueue restarts it.
type Queue struct {
	mu       sync.Mutex
	pending  []*task
	draining bool
}

// New returns an idle queue.
func New() *Queue {
	return &Queue{}
}

// Do appends fn to the queue and blocks until fn itself has run to
// completion, returning its error. If ctx is done before fn's turn comes,
// Do returns early with the context error; the queued work still runs when
// its turn arrives, so fn should observe ctx itself when that matters.
func (q *Queue) Do(ctx context.Context, fn func(context.Context) error) error {
	t := &task{done: make(chan struct{})}
	t.run = func() { t.err = fn(ctx) }

	q.mu.Lock()
	q.pending = append(q.pending, t)
	if !q.draining {
		q.draining = true
		go q.drain()
	}
	q.mu.Unlock()

	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DoValue runs fn on q and returns its result once it has completed. The
// value travels through a buffered channel: if Do returns early on a done
// context the task still runs later, and its send must not share memory with
// (or block on) a caller that has already left.
func DoValue[T any](q *Queue, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	out := make(chan T, 1)
	err := q.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out <- v
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return <-out, nil
}

// CancelAll discards every item that has not started yet; their waiters
// receive ErrCanceled. An item already executing runs to completion.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, t := range dropped {
		t.err = ErrCanceled
		close(t.done)
	}
}

// Len reports how many items are waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// drain pops and runs items until the queue is empty, then stops.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		t := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		t.run()
		close(t.done)
	}
}
