package devicefactory

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/blegate/internal/device"
	"github.com/srg/blegate/internal/device/go-ble"
	"github.com/srg/blegate/sharedlock"
)

// RadioFactory creates the platform radio adapter.
// This is a variable so that it can be overridden in tests.
var RadioFactory = func(logger *logrus.Logger) device.Adapter {
	return goble.NewAdapter(logger)
}

// Options selects how the radio is shared.
type Options struct {
	// Lock, when set, serializes every radio operation through it.
	Lock *sharedlock.Lock
	// Locked wraps the radio with a private lock when Lock is nil.
	Locked bool
}

// NewAdapter creates the radio adapter used by the gateway.
func NewAdapter(logger *logrus.Logger, opts Options) device.Adapter {
	radio := RadioFactory(logger)
	if opts.Lock == nil && !opts.Locked {
		return radio
	}
	return device.NewLockedAdapter(radio, opts.Lock)
}
