// Package serial runs work in per-key FIFO lanes. Jobs sharing a key execute
// one at a time in submission order; distinct keys run concurrently.
package serial

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("serial: queue closed")

// Options tunes a Queue.
type Options struct {
	// OnPending observes the number of queued but unfinished jobs.
	OnPending func(n int)
}

type lane struct {
	jobs []func()
}

// Queue owns one goroutine per busy key. Idle keys hold no resources.
type Queue struct {
	opts    Options
	mu      sync.Mutex
	lanes   map[int64]*lane
	pending int
	closed  bool
	wg      sync.WaitGroup
}

// New returns an empty queue.
func New(opts Options) *Queue {
	return &Queue{
		opts:  opts,
		lanes: make(map[int64]*lane),
	}
}

// Submit appends fn to the lane for key. It never blocks on fn.
func (q *Queue) Submit(key int64, fn func()) error {
	if fn == nil {
		return nil
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending++
	q.notify()
	if l, ok := q.lanes[key]; ok {
		l.jobs = append(l.jobs, fn)
		q.mu.Unlock()
		return nil
	}
	l := &lane{jobs: []func(){fn}}
	q.lanes[key] = l
	q.wg.Add(1)
	q.mu.Unlock()

	go q.drain(key, l)
	return nil
}

func (q *Queue) drain(key int64, l *lane) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(l.jobs) == 0 {
			delete(q.lanes, key)
			q.mu.Unlock()
			return
		}
		fn := l.jobs[0]
		l.jobs[0] = nil
		l.jobs = l.jobs[1:]
		q.mu.Unlock()

		run(fn)

		q.mu.Lock()
		q.pending--
		q.notify()
		q.mu.Unlock()
	}
}

// run keeps a panicking job from killing its lane.
func run(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// notify must be called with mu held.
func (q *Queue) notify() {
	if q.opts.OnPending != nil {
		q.opts.OnPending(q.pending)
	}
}

// Pending returns the number of submitted jobs that have not finished.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Close rejects new jobs and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}
