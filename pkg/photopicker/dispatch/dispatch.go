// Package dispatch provides the execution contexts the picker core uses to
// serialise work. UI-facing state (the selection store, the transition
// machine) must only be touched from one Executor; pipelines marshal their
// completions back through it.
package dispatch

import (
	"sync"
)

// Executor runs functions in some execution context.
type Executor interface {
	Dispatch(fn func())
}

// ExecutorFunc adapts a function to Executor. Hosts with a UI thread wrap
// their "run on main" primitive with it.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Dispatch(fn func()) {
	f(fn)
}

// Inline runs functions immediately on the caller's goroutine.
var Inline Executor = ExecutorFunc(func(fn func()) { fn() })

// Go runs every function on its own goroutine. No ordering is guaranteed.
var Go Executor = ExecutorFunc(func(fn func()) { go fn() })

// Queue is a serial executor. Functions run one at a time, in submission
// order, on a single goroutine owned by the queue. Dispatch never blocks, so
// work running on the queue may enqueue more work onto it.
type Queue struct {
	name string

	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewQueue starts a serial queue. The name only shows up in logs.
func NewQueue(name string) *Queue {
	q := &Queue{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) Name() string {
	return q.name
}

// Dispatch enqueues fn. Functions dispatched after Close are dropped.
func (q *Queue) Dispatch(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Sync enqueues fn and waits for it to run. It must not be called from the
// queue itself. It returns false if the queue was closed before fn ran.
func (q *Queue) Sync(fn func()) bool {
	ran := make(chan struct{})
	q.Dispatch(func() {
		fn()
		close(ran)
	})

	select {
	case <-ran:
		return true
	case <-q.done:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// Close stops accepting work, drains what is already queued and waits for
// the worker goroutine to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}
