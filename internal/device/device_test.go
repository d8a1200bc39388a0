package device_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/srg/blegate/internal/device"
	"github.com/srg/blegate/internal/testutils"
	"github.com/srg/blegate/sharedlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestConnectionError_Is(t *testing.T) {
	wrapped := fmt.Errorf("connect: %w", &device.ConnectionError{State: device.AlreadyConnected, Msg: "link busy"})

	assert.ErrorIs(t, wrapped, device.ErrAlreadyConnected)
	assert.NotErrorIs(t, wrapped, device.ErrNotConnected)
	assert.True(t, device.IsConnectionState(wrapped, device.AlreadyConnected))
	assert.Equal(t, "already_connected: link busy", errors.Unwrap(wrapped).Error())
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "not connected", err: errors.New("Device Not Connected"), want: device.ErrNotConnected},
		{name: "already connected", err: errors.New("device already connected"), want: device.ErrAlreadyConnected},
		{name: "not initialized", err: errors.New("connection is not initialized"), want: device.ErrNotInitialized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, device.NormalizeError(tt.err), tt.want)
		})
	}

	t.Run("unknown errors pass through", func(t *testing.T) {
		err := errors.New("radio on fire")
		assert.Same(t, err, device.NormalizeError(err))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, device.NormalizeError(nil))
	})
}

func TestFlags(t *testing.T) {
	f := device.FlagUserConnected | device.FlagPendingData

	assert.True(t, f.UserConnected())
	assert.True(t, f.PendingData())
	assert.False(t, f.LowVoltage())
}

func TestParseManufacturerData(t *testing.T) {
	t.Run("iotile with voltage", func(t *testing.T) {
		raw := []byte{0xC0, 0x03, 0x78, 0x56, 0x34, 0x12, 0x03, 0x00, 0x80, 0x03}

		parsed, err := device.ParseManufacturerData(device.UnknownCompanyID, raw)
		require.NoError(t, err)

		tile, ok := parsed.(*device.TileManufacturerData)
		require.True(t, ok)
		assert.Equal(t, uint32(0x12345678), tile.UUID)
		assert.True(t, tile.Flags.LowVoltage())
		assert.True(t, tile.Flags.UserConnected())
		assert.True(t, tile.HasVoltage)
		assert.InDelta(t, 3.5, tile.Voltage, 1e-9)
		assert.Equal(t, device.TileCompanyID, tile.VendorID())
	})

	t.Run("iotile without voltage", func(t *testing.T) {
		raw := []byte{0xC0, 0x03, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}

		parsed, err := device.ParseManufacturerData(device.TileCompanyID, raw)
		require.NoError(t, err)

		tile := parsed.(*device.TileManufacturerData)
		assert.Equal(t, uint32(1), tile.UUID)
		assert.False(t, tile.HasVoltage)
	})

	t.Run("iotile too short", func(t *testing.T) {
		_, err := device.ParseManufacturerData(device.UnknownCompanyID, []byte{0xC0, 0x03, 0x01})
		assert.Error(t, err)
	})

	t.Run("unknown company", func(t *testing.T) {
		parsed, err := device.ParseManufacturerData(device.UnknownCompanyID, []byte{0x4C, 0x00, 0x02})
		assert.NoError(t, err)
		assert.Nil(t, parsed)
		assert.False(t, device.IsParsableManufacturerData(0x004C))
	})

	t.Run("missing company id", func(t *testing.T) {
		_, err := device.ParseManufacturerData(device.UnknownCompanyID, []byte{0xC0})
		assert.Error(t, err)
	})
}

// slowAdapter reports overlapping calls.
type slowAdapter struct {
	*testutils.MockAdapter
	active  atomic.Int32
	overlap atomic.Bool
}

func (s *slowAdapter) RPC(ctx context.Context, address uint8, command uint16, payload []byte, timeout time.Duration) ([]byte, error) {
	if s.active.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.active.Add(-1)
	time.Sleep(2 * time.Millisecond)
	return s.MockAdapter.RPC(ctx, address, command, payload, timeout)
}

func TestLockedAdapter_SerializesRadioAccess(t *testing.T) {
	inner := &slowAdapter{MockAdapter: testutils.NewMockAdapter()}
	locked := device.NewLockedAdapter(inner, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = locked.RPC(context.Background(), 8, uint16(i), nil, time.Second)
		}(i)
	}
	wg.Wait()

	assert.False(t, inner.overlap.Load(), "RPCs overlapped on the radio")
	inner.AssertNumberOfCalls(t, "RPC", 8)
	assert.Equal(t, sharedlock.State{}, locked.Lock().Stats())
}

func TestLockedAdapter_WaitsForExternalHolder(t *testing.T) {
	lock := sharedlock.New()
	fake := testutils.NewMockAdapter(testutils.Advertisements("X")...)
	locked := device.NewLockedAdapter(fake, lock)

	// Another part of the application reads from the radio.
	release, err := lock.AcquireShared(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locked.Scan(ctx, time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	fake.AssertNotCalled(t, "Scan", mock.Anything, mock.Anything)

	release()

	ads, err := locked.Scan(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Len(t, ads, 1)
	assert.NoError(t, locked.Disconnect())
	fake.AssertNumberOfCalls(t, "Disconnect", 1)
}
