// Package registry holds the gateway's view of discovered devices and of the
// connections a remote client has opened against them.
package registry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/blegate/internal/device"
)

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// generation is one scan's worth of advertisements, keyed by device ID.
type generation struct {
	seq     uint64
	devices *hashmap.Map[string, device.Advertisement]
}

// Devices maps device IDs to the advertisements of the most recent successful scan.
// Each scan replaces the whole mapping; IDs seen only by earlier scans are unknown.
type Devices struct {
	adapter device.Adapter
	logger  *logrus.Logger
	current atomic.Pointer[generation]
}

// NewDevices creates an empty registry scanning through adapter.
func NewDevices(adapter device.Adapter, logger *logrus.Logger) *Devices {
	if logger == nil {
		logger = logrus.New()
	}

	d := &Devices{adapter: adapter, logger: logger}
	d.current.Store(&generation{devices: hashmap.New[string, device.Advertisement]()})
	return d
}

// Scan discovers devices for duration and replaces the registry with the result.
// The result is returned even when empty. On error the previous generation stays.
func (d *Devices) Scan(ctx context.Context, duration time.Duration) ([]device.Advertisement, error) {
	return d.ScanWithProgress(ctx, duration, nil)
}

// ScanWithProgress is Scan with phase reporting.
func (d *Devices) ScanWithProgress(ctx context.Context, duration time.Duration, progress ProgressCallback) ([]device.Advertisement, error) {
	if progress == nil {
		progress = func(string) {} // No-op callback
	}

	progress("Scanning")

	ads, err := d.adapter.Scan(ctx, duration)
	if err != nil {
		d.logger.WithError(err).Warn("Scan failed, keeping previous device registry")
		return nil, err
	}

	progress("Processing results")

	devices := hashmap.New[string, device.Advertisement]()
	for _, adv := range ads {
		devices.Set(adv.ID(), adv)
	}

	prev := d.current.Load()
	next := &generation{seq: prev.seq + 1, devices: devices}
	// Scans are not expected to overlap; if they do, the last to finish wins.
	for !d.current.CompareAndSwap(prev, next) {
		prev = d.current.Load()
		next.seq = prev.seq + 1
	}

	d.logger.WithFields(logrus.Fields{
		"device_count": devices.Len(),
		"generation":   next.seq,
	}).Debug("Device registry replaced")

	if ads == nil {
		ads = []device.Advertisement{}
	}
	return ads, nil
}

// Lookup returns the advertisement of id from the most recent scan.
func (d *Devices) Lookup(id string) (device.Advertisement, bool) {
	return d.current.Load().devices.Get(id)
}

// Len returns the number of devices known from the most recent scan.
func (d *Devices) Len() int {
	return d.current.Load().devices.Len()
}

// Generation returns the number of successful scans so far.
func (d *Devices) Generation() uint64 {
	return d.current.Load().seq
}
