// Package mainloop provides the single serial execution context on which session deliveries and navigation decisions run.
//
// Work posted from any goroutine is executed one item at a time, in the order it was posted.
// The loop never blocks a poster: the queue is unbounded, so a provider callback firing on a network goroutine can hand off
// and return immediately.
//
// Where the work finally executes is decided by a [Sink]. The default sink runs work on the loop's own goroutine.
// The terminal UI installs a sink that forwards each item into the bubbletea program, so posted work runs inside Update
// alongside key presses and surface startup, never concurrently with them.
package mainloop

import (
	"sync"
)

// Sink executes (or forwards for execution) one unit of posted work. A sink is called from a single goroutine,
// one item at a time, in FIFO order.
type Sink func(fn func())

// Direct runs work on the loop goroutine.
func Direct(fn func()) { fn() }

// Loop is a FIFO work queue drained by one goroutine.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	sink   Sink
	closed bool
	done   chan struct{}
}

// New starts a loop that hands work to [Direct].
func New() *Loop {
	l := &Loop{sink: Direct, done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// SetSink replaces the sink. Items already handed to the previous sink are not affected.
func (l *Loop) SetSink(s Sink) {
	if s == nil {
		s = Direct
	}
	l.mu.Lock()
	l.sink = s
	l.mu.Unlock()
}

// Post enqueues fn and returns without waiting. It reports false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Do runs fn on the loop and waits for it to finish. It must not be called from work running on the loop.
func (l *Loop) Do(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		// The loop drains before closing done, so finished is already closed if fn ran.
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

// Flush waits until everything posted before the call has executed.
func (l *Loop) Flush() {
	l.Do(func() {})
}

// Close stops accepting work, drains what is queued, and waits for the loop goroutine to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.cond.Broadcast()
	}
	l.mu.Unlock()
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.closed {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		sink := l.sink
		l.mu.Unlock()

		sink(fn)
	}
}
