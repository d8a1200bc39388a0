//go:build !darwin && !linux

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/srg/blegate/internal/device"
)

func newPlatformDevice() (ble.Device, error) {
	return nil, fmt.Errorf("%w: no BLE support on %s", device.ErrUnsupported, runtime.GOOS)
}
