// Package shutdown provides a one-shot broadcast shutdown signal shared by
// every long-running component of the harness: the emission loop, the
// blackhole sink, the telemetry capture sink, the system monitor. Every
// component observes the same Context and tears down cooperatively instead
// of being killed outright.
package shutdown

import (
	"context"
	"sync"
	"time"
)

// Broadcaster owns the cancellation signal. Trigger (directly, or via a
// caught OS signal) cancels the Context every component was handed, exactly
// once no matter how many times Trigger is called.
type Broadcaster struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	wg   sync.WaitGroup
	done bool
}

// New creates a Broadcaster whose Context is derived from parent.
func New(parent context.Context) *Broadcaster {
	ctx, cancel := context.WithCancel(parent)
	return &Broadcaster{ctx: ctx, cancel: cancel}
}

// Context returns the Context components should select on to notice
// shutdown. It never changes identity across the Broadcaster's lifetime.
func (b *Broadcaster) Context() context.Context {
	return b.ctx
}

// Track registers one in-flight component. Wait blocks until every tracked
// component calls Done on its returned handle.
func (b *Broadcaster) Track() func() {
	b.wg.Add(1)
	var once sync.Once
	return func() {
		once.Do(b.wg.Done)
	}
}

// Trigger cancels the Context. Safe to call more than once and from more
// than one goroutine — only the first call has any effect.
func (b *Broadcaster) Trigger() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.done = true
	b.cancel()
}

// Wait blocks until every component tracked via Track has called its Done
// handle, or until timeout elapses, whichever comes first. It reports
// whether every component finished in time.
func (b *Broadcaster) Wait(timeout time.Duration) bool {
	finished := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return true
	case <-time.After(timeout):
		return false
	}
}
