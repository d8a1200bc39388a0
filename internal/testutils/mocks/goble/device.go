// Package goble holds testify mocks of the go-ble interfaces the radio adapter uses.
package goble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockDevice is a mock of ble.Device.
type MockDevice struct {
	mock.Mock
}

var _ ble.Device = (*MockDevice)(nil)

func (m *MockDevice) AddService(svc *ble.Service) error {
	return m.Called(svc).Error(0)
}

func (m *MockDevice) RemoveAllServices() error {
	return m.Called().Error(0)
}

func (m *MockDevice) SetServices(svcs []*ble.Service) error {
	return m.Called(svcs).Error(0)
}

func (m *MockDevice) Stop() error {
	return m.Called().Error(0)
}

func (m *MockDevice) Advertise(ctx context.Context, adv ble.Advertisement) error {
	return m.Called(ctx, adv).Error(0)
}

func (m *MockDevice) AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error {
	return m.Called(ctx, name, uuids).Error(0)
}

func (m *MockDevice) AdvertiseMfgData(ctx context.Context, id uint16, b []byte) error {
	return m.Called(ctx, id, b).Error(0)
}

func (m *MockDevice) AdvertiseServiceData16(ctx context.Context, id uint16, b []byte) error {
	return m.Called(ctx, id, b).Error(0)
}

func (m *MockDevice) AdvertiseIBeaconData(ctx context.Context, b []byte) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockDevice) AdvertiseIBeacon(ctx context.Context, u ble.UUID, major, minor uint16, pwr int8) error {
	return m.Called(ctx, u, major, minor, pwr).Error(0)
}

// Scan returns the configured error, or calls a configured
// func(context.Context, bool, ble.AdvHandler) error.
func (m *MockDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	ret := m.Called(ctx, allowDup, h)
	if rf, ok := ret.Get(0).(func(context.Context, bool, ble.AdvHandler) error); ok {
		return rf(ctx, allowDup, h)
	}
	return ret.Error(0)
}

func (m *MockDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	ret := m.Called(ctx, a)
	var client ble.Client
	if c := ret.Get(0); c != nil {
		client = c.(ble.Client)
	}
	return client, ret.Error(1)
}
