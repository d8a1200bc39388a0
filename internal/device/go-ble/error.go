package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/blegate/internal/device"
)

// NormalizeError maps known go-ble error strings to structured device errors.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", device.ErrTimeout, err)
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	default:
		return device.NormalizeError(err)
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
