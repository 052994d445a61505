package live

import (
	"context"
	"sync"
)

// Feed delivers the newest value of a stream to a single consumer.
//
// Every value published on a feed is a complete replacement of the previous one,
// so Publish never blocks: a value the consumer has not read yet is discarded in
// favour of the next. A slow reader always observes the latest state, never a
// backlog.
//
// A feed is closed explicitly with Close, or implicitly when the context it was
// created with is cancelled. Closing runs the registered OnClose hooks exactly once
// and closes the Updates channel.
type Feed[T any] struct {
	ch      chan T
	done    chan struct{}
	onClose []func()
	mu      sync.Mutex
	closed  bool
}

// New creates an open feed bound to ctx.
func New[T any](ctx context.Context) *Feed[T] {
	f := &Feed[T]{
		ch:   make(chan T, 1),
		done: make(chan struct{}),
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = f.Close()
		case <-f.done:
		}
	}()

	return f
}

// Updates returns the channel values are delivered on.
// The channel is closed when the feed closes.
func (f *Feed[T]) Updates() <-chan T {
	return f.ch
}

// Done is closed once the feed has been closed.
func (f *Feed[T]) Done() <-chan struct{} {
	return f.done
}

// Publish replaces any undelivered value with v.
// Returns false if the feed is already closed.
func (f *Feed[T]) Publish(v T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}

	// Only Publish sends, and it holds mu, so after the drain the buffer is empty.
	select {
	case <-f.ch:
	default:
	}
	f.ch <- v
	return true
}

// OnClose registers fn to run when the feed closes.
// If the feed is already closed fn runs immediately.
func (f *Feed[T]) OnClose(fn func()) {
	f.mu.Lock()
	if !f.closed {
		f.onClose = append(f.onClose, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	fn()
}

// Closed reports whether Close has been called.
func (f *Feed[T]) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close releases the feed. It is safe to call more than once.
func (f *Feed[T]) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	hooks := f.onClose
	f.onClose = nil

	// Drop anything unread so nothing is delivered after close.
	select {
	case <-f.ch:
	default:
	}
	close(f.ch)
	close(f.done)
	f.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}
