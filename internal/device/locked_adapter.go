package device

import (
	"context"
	"time"

	"github.com/srg/blegate/sharedlock"
)

// LockedAdapter serializes every radio operation of the wrapped Adapter through an
// exclusive hold on a shared lock. Other users of the same radio are expected to
// acquire the same lock.
type LockedAdapter struct {
	adapter Adapter
	lock    *sharedlock.Lock
}

// NewLockedAdapter wraps adapter. A nil lock gets a private one.
func NewLockedAdapter(adapter Adapter, lock *sharedlock.Lock) *LockedAdapter {
	if lock == nil {
		lock = sharedlock.New()
	}
	return &LockedAdapter{adapter: adapter, lock: lock}
}

// Lock returns the lock guarding the radio.
func (a *LockedAdapter) Lock() *sharedlock.Lock {
	return a.lock
}

func (a *LockedAdapter) Scan(ctx context.Context, duration time.Duration) ([]Advertisement, error) {
	release, err := a.lock.AcquireExclusive(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return a.adapter.Scan(ctx, duration)
}

func (a *LockedAdapter) Connect(ctx context.Context, adv Advertisement, opts *ConnectOptions) error {
	release, err := a.lock.AcquireExclusive(ctx)
	if err != nil {
		return err
	}
	defer release()

	return a.adapter.Connect(ctx, adv, opts)
}

// Disconnect waits for the radio without a deadline.
func (a *LockedAdapter) Disconnect() error {
	release, err := a.lock.AcquireExclusive(context.Background())
	if err != nil {
		return err
	}
	defer release()

	return a.adapter.Disconnect()
}

func (a *LockedAdapter) RPC(ctx context.Context, address uint8, command uint16, payload []byte, timeout time.Duration) ([]byte, error) {
	release, err := a.lock.AcquireExclusive(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return a.adapter.RPC(ctx, address, command, payload, timeout)
}
