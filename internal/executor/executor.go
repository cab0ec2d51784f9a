// Package executor provides the execution contexts a send runs on: a serial
// wallet context, detached background tasks, and an inline context for tests.
package executor

import (
	"sync"
)

// Executor runs submitted functions.
type Executor interface {
	Submit(fn func())
}

// Func adapts an ordinary function to Executor.
type Func func(fn func())

// Submit implements Executor.
func (f Func) Submit(fn func()) { f(fn) }

// Inline runs each function synchronously on the caller's goroutine.
type Inline struct{}

// Submit implements Executor.
func (Inline) Submit(fn func()) { fn() }

// Detached runs each function on its own goroutine.
type Detached struct{}

// Submit implements Executor.
func (Detached) Submit(fn func()) { go fn() }

// Locked runs each function on the submitting goroutine, one at a time.
// Unlike Serial it owns no goroutine, so it needs no Close.
type Locked struct {
	mu sync.Mutex
}

// Submit implements Executor.
func (l *Locked) Submit(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// Serial runs functions one at a time, in submission order, on a single
// goroutine. It is the wallet context: signing and wallet mutations never
// overlap.
type Serial struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewSerial starts a serial executor.
func NewSerial() *Serial {
	s := &Serial{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

// Submit implements Executor. Functions submitted after Close are dropped.
func (s *Serial) Submit(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, fn)
	s.cond.Signal()
}

// Close stops accepting work and waits for queued functions to finish.
func (s *Serial) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
}

func (s *Serial) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		fn()
	}
}

// Run submits fn to e and blocks until it has run.
func Run(e Executor, fn func()) {
	done := make(chan struct{})
	e.Submit(func() {
		defer close(done)
		fn()
	})
	<-done
}
