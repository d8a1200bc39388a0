package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
)

// Operation errors
var (
	ErrTimeout         = errors.New("timeout")
	ErrUnsupported     = errors.New("unsupported")
	ErrBluetoothOff    = errors.New("bluetooth is turned off")
	ErrPayloadTooLarge = errors.New("rpc payload too large")
)

// NormalizeError maps known adapter error strings to structured ConnectionError types.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", ErrAlreadyConnected, err)
	case containsIgnoreCase(msg, "connection is not initialized"):
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	default:
		return err
	}
}

// containsIgnoreCase checks substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// Flags are the status bits a device broadcasts in its advertisement.
type Flags uint16

const (
	FlagLowVoltage    Flags = 1 << 0
	FlagUserConnected Flags = 1 << 1
	FlagPendingData   Flags = 1 << 2
)

// LowVoltage reports whether the device signals a low battery.
func (f Flags) LowVoltage() bool { return f&FlagLowVoltage != 0 }

// UserConnected reports whether another client already holds the device's link.
func (f Flags) UserConnected() bool { return f&FlagUserConnected != 0 }

// PendingData reports whether the device has buffered data to deliver.
func (f Flags) PendingData() bool { return f&FlagPendingData != 0 }

// Advertisement is a discovered device's identity and signal snapshot.
type Advertisement interface {
	ID() string   // device identifier used by clients to pick a device
	Addr() string // radio address, used as the connection string
	LocalName() string
	RSSI() int
	Connectable() bool
	ManufacturerData() []byte
	Flags() Flags
	Voltage() float64
}

// ConnectOptions defines BLE connection options
type ConnectOptions struct {
	ConnectTimeout time.Duration
}

// Adapter is the capability interface to the radio.
//
// The radio holds a single physical link: whether Connect on an already linked
// adapter fails, queues or replaces the link is decided by the implementation.
// Disconnect must be safe to call when nothing is connected.
type Adapter interface {
	Scan(ctx context.Context, duration time.Duration) ([]Advertisement, error)
	Connect(ctx context.Context, adv Advertisement, opts *ConnectOptions) error
	Disconnect() error
	RPC(ctx context.Context, address uint8, command uint16, payload []byte, timeout time.Duration) ([]byte, error)
}
