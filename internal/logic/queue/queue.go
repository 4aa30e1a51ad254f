// Package queue provides serialized execution contexts.
//
// A Queue runs submitted functions one at a time, in submission order, on a
// single goroutine. The session controller owns two of them: a worker context
// that is the only place the capture session is mutated, and a UI-affinity
// context that is the only place display state is touched.
package queue

import (
	"sync"

	"github.com/cjeanneret/RecPause/internal/debug"
)

// Queue is a FIFO serial executor with suspend/resume.
type Queue struct {
	name string

	mu        sync.Mutex
	cond      *sync.Cond
	tasks     []func()
	suspended int
	closed    bool
	done      chan struct{}
}

// New starts a queue with the given label.
func New(name string) *Queue {
	q := &Queue{
		name: name,
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

// Name returns the queue label.
func (q *Queue) Name() string { return q.name }

// Async enqueues fn and returns immediately. Submissions after Close are dropped.
func (q *Queue) Async(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		debug.Trace("queue %s: dropped task after close", q.name)
		return
	}
	q.tasks = append(q.tasks, fn)
	q.cond.Signal()
}

// Sync enqueues fn and blocks until it has run. It must not be called from
// fn's own queue. Returns false if the queue was closed before fn ran.
func (q *Queue) Sync(fn func()) bool {
	ran := make(chan struct{})
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, func() {
		defer close(ran)
		fn()
	})
	q.cond.Signal()
	q.mu.Unlock()

	select {
	case <-ran:
		return true
	case <-q.done:
		// The loop may have run fn right before exiting.
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// Suspend stops dispatching queued work until a matching Resume.
// Calls nest; submitters are never blocked.
func (q *Queue) Suspend() {
	q.mu.Lock()
	q.suspended++
	q.mu.Unlock()
}

// Resume undoes one Suspend.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.suspended == 0 {
		debug.Errorf("queue %s: resume without suspend", q.name)
		return
	}
	q.suspended--
	q.cond.Signal()
}

// Suspended reports whether dispatch is currently held.
func (q *Queue) Suspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended > 0
}

// Close drains already-queued work and stops the goroutine. Close waits for
// the drain unless the queue is suspended, in which case pending work is dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for !q.closed && (len(q.tasks) == 0 || q.suspended > 0) {
			q.cond.Wait()
		}
		if q.closed && (len(q.tasks) == 0 || q.suspended > 0) {
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
	}
}
