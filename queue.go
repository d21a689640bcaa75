// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO. Push never blocks; Pop blocks until an item is
// available, the queue is closed and drained, or ctx is done.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	ready  chan struct{} // cap 1, signalled on push and close
	closed bool
	reason error
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{ready: make(chan struct{}, 1)}
}

// push appends v. It reports false if the queue is already closed.
func (q *queue[T]) push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
	return true
}

// close marks the queue closed with reason. Items already queued remain
// poppable. Only the first close wins.
func (q *queue[T]) close(reason error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.reason = reason
	q.mu.Unlock()
	q.signal()
}

func (q *queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// pop returns the next item. Once the queue is closed and empty it returns the
// close reason.
func (q *queue[T]) pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			more := len(q.items) > 0 || q.closed
			q.mu.Unlock()
			if more {
				// keep the next waiter awake
				q.signal()
			}
			return v, nil
		}
		if q.closed {
			reason := q.reason
			q.mu.Unlock()
			q.signal()
			var zero T
			return zero, reason
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
