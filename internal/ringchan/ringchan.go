// Package ringchan provides a bounded channel whose producers never block: when the
// buffer is full the oldest element is discarded.
package ringchan

import (
	"sync"
	"sync/atomic"
)

// RingChannel is a bounded channel-like buffer with overwrite-oldest semantics.
// Readers range over C() like a normal channel.
//
//	rc := ringchan.New[bridge.Status](8)
//	server.OnStatusChange(func(st bridge.Status) { rc.ForceSend(st) })
//	for st := range rc.C() {
//	    fmt.Println(st)
//	}
type RingChannel[T any] struct {
	mu      sync.Mutex // serializes producers so drop-then-send is atomic
	ch      chan T
	closed  bool
	written atomic.Int64
	dropped atomic.Int64
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel.
// Consumers can range over this until it's closed.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// ForceSend inserts v without blocking, discarding the oldest element if the buffer
// is full. It reports whether an element was dropped. Sends after Close are ignored.
func (rc *RingChannel[T]) ForceSend(v T) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return false
	}

	dropped := false
	select {
	case rc.ch <- v:
	default:
		select {
		case <-rc.ch: // drop oldest
			rc.dropped.Add(1)
			dropped = true
		default:
		}
		rc.ch <- v
	}
	rc.written.Add(1)
	return dropped
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Written returns how many elements were accepted.
func (rc *RingChannel[T]) Written() int64 {
	return rc.written.Load()
}

// Dropped returns how many elements were overwritten before being read.
func (rc *RingChannel[T]) Dropped() int64 {
	return rc.dropped.Load()
}

// Close closes the underlying channel. Closing twice is a no-op.
func (rc *RingChannel[T]) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.closed {
		rc.closed = true
		close(rc.ch)
	}
}
