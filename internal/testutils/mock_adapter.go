package testutils

import (
	"context"
	"time"

	"github.com/srg/blegate/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockAdapter is a mock of device.Adapter.
type MockAdapter struct {
	mock.Mock

	current map[string]*mock.Call
}

var _ device.Adapter = (*MockAdapter)(nil)

// NewMockAdapter returns a MockAdapter whose scans report ads and whose other
// operations succeed. Use the On* helpers to replace a default.
func NewMockAdapter(ads ...device.Advertisement) *MockAdapter {
	m := &MockAdapter{current: make(map[string]*mock.Call)}
	m.OnScan(ads...)
	m.OnConnect(nil)
	m.On("Disconnect").Return(nil).Maybe()
	m.OnRPC(nil, nil)
	return m
}

// OnScan makes every following scan report ads.
func (m *MockAdapter) OnScan(ads ...device.Advertisement) *mock.Call {
	m.unset("Scan")
	return m.track("Scan", m.On("Scan", mock.Anything, mock.Anything).Return(ads, nil))
}

// OnScanError makes every following scan fail with err.
func (m *MockAdapter) OnScanError(err error) *mock.Call {
	m.unset("Scan")
	return m.track("Scan", m.On("Scan", mock.Anything, mock.Anything).Return(nil, err))
}

// OnConnect makes every following connect return err.
func (m *MockAdapter) OnConnect(err error) *mock.Call {
	m.unset("Connect")
	return m.track("Connect", m.On("Connect", mock.Anything, mock.Anything, mock.Anything).Return(err))
}

// OnRPC makes every following RPC return resp and err. resp may also be a
// func(address uint8, command uint16, payload []byte) ([]byte, error).
func (m *MockAdapter) OnRPC(resp any, err error) *mock.Call {
	m.unset("RPC")
	return m.track("RPC", m.On("RPC", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(resp, err))
}

// unset drops the expectation an On* helper registered for method. Calls
// already made stay recorded for AssertCalled.
func (m *MockAdapter) unset(method string) {
	if old, ok := m.current[method]; ok {
		old.Unset()
		delete(m.current, method)
	}
}

func (m *MockAdapter) track(method string, call *mock.Call) *mock.Call {
	m.current[method] = call
	return call.Maybe()
}

func (m *MockAdapter) Scan(ctx context.Context, duration time.Duration) ([]device.Advertisement, error) {
	ret := m.Called(ctx, duration)

	var ads []device.Advertisement
	if v := ret.Get(0); v != nil {
		ads = append([]device.Advertisement{}, v.([]device.Advertisement)...)
	}
	return ads, ret.Error(1)
}

func (m *MockAdapter) Connect(ctx context.Context, adv device.Advertisement, opts *device.ConnectOptions) error {
	return m.Called(ctx, adv, opts).Error(0)
}

func (m *MockAdapter) Disconnect() error {
	return m.Called().Error(0)
}

func (m *MockAdapter) RPC(ctx context.Context, address uint8, command uint16, payload []byte, timeout time.Duration) ([]byte, error) {
	ret := m.Called(ctx, address, command, payload, timeout)

	if rf, ok := ret.Get(0).(func(uint8, uint16, []byte) ([]byte, error)); ok {
		return rf(address, command, payload)
	}
	var resp []byte
	if v := ret.Get(0); v != nil {
		resp = v.([]byte)
	}
	return resp, ret.Error(1)
}
