// Package sharedlock provides a write-aware FIFO read/write scheduling lock.
//
// Requests are granted strictly in arrival order. Consecutive shared requests at the
// head of the queue run concurrently; an exclusive request at the head blocks every
// request behind it until it is granted and released, so a steady stream of shared
// requests can never starve an exclusive one.
//
// A holder that never calls its Release blocks all later acquisitions. There is no
// detection for this.
package sharedlock

import (
	"context"
	"sync"
)

// Release gives the lock back. Only the first call has an effect.
type Release func()

// State is the part of the lock the scheduling pass reads and writes.
type State struct {
	HeldExclusive bool
	Holders       int
}

// Schedule runs one scheduling pass over queued requests, given head first as their
// exclusive flags. It returns how many requests from the head are granted and the
// state after granting them.
func Schedule(st State, queue []bool) (int, State) {
	granted := 0
	for !st.HeldExclusive && granted < len(queue) {
		exclusive := queue[granted]
		if exclusive && st.Holders > 0 {
			break
		}

		st.Holders++
		st.HeldExclusive = exclusive
		granted++

		if exclusive {
			break
		}
	}
	return granted, st
}

type waiter struct {
	exclusive bool
	grant     chan Release
}

// Lock is a write-aware FIFO lock. The zero value is not usable; call New.
type Lock struct {
	mu      sync.Mutex
	state   State
	waiters []*waiter
}

// New returns an unlocked Lock.
func New() *Lock {
	return &Lock{}
}

// AcquireShared waits until the lock can be held together with other shared holders.
func (l *Lock) AcquireShared(ctx context.Context) (Release, error) {
	return l.acquire(ctx, false)
}

// AcquireExclusive waits until the lock can be held alone.
func (l *Lock) AcquireExclusive(ctx context.Context) (Release, error) {
	return l.acquire(ctx, true)
}

// Stats returns a snapshot of the holder state.
func (l *Lock) Stats() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Waiting returns the number of queued requests.
func (l *Lock) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

func (l *Lock) acquire(ctx context.Context, exclusive bool) (Release, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	w := &waiter{exclusive: exclusive, grant: make(chan Release, 1)}

	l.mu.Lock()
	l.waiters = append(l.waiters, w)
	l.scheduleLocked()
	l.mu.Unlock()

	select {
	case release := <-w.grant:
		return release, nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	if l.removeLocked(w) {
		// Leaving the queue may unblock the requests behind us.
		l.scheduleLocked()
		l.mu.Unlock()
		return nil, ctx.Err()
	}
	l.mu.Unlock()

	// Granted while we were giving up: hand it straight back.
	release := <-w.grant
	release()
	return nil, ctx.Err()
}

func (l *Lock) scheduleLocked() {
	flags := make([]bool, len(l.waiters))
	for i, w := range l.waiters {
		flags[i] = w.exclusive
	}

	granted, next := Schedule(l.state, flags)
	l.state = next

	for _, w := range l.waiters[:granted] {
		w.grant <- l.releaser()
	}
	l.waiters = l.waiters[granted:]
}

func (l *Lock) releaser() Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()

			l.state.Holders--
			if l.state.Holders == 0 {
				l.state.HeldExclusive = false
			}
			l.scheduleLocked()
		})
	}
}

func (l *Lock) removeLocked(target *waiter) bool {
	for i, w := range l.waiters {
		if w == target {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return true
		}
	}
	return false
}
