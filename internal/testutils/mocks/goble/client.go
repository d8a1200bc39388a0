package goble

import (
	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockClient is a mock of ble.Client.
type MockClient struct {
	mock.Mock
}

var _ ble.Client = (*MockClient)(nil)

func (m *MockClient) Addr() ble.Addr {
	ret := m.Called()
	if a := ret.Get(0); a != nil {
		return a.(ble.Addr)
	}
	return nil
}

func (m *MockClient) Name() string {
	return m.Called().String(0)
}

func (m *MockClient) Profile() *ble.Profile {
	ret := m.Called()
	if p := ret.Get(0); p != nil {
		return p.(*ble.Profile)
	}
	return nil
}

func (m *MockClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	ret := m.Called(force)
	var p *ble.Profile
	if v := ret.Get(0); v != nil {
		p = v.(*ble.Profile)
	}
	return p, ret.Error(1)
}

func (m *MockClient) DiscoverServices(filter []ble.UUID) ([]*ble.Service, error) {
	ret := m.Called(filter)
	var s []*ble.Service
	if v := ret.Get(0); v != nil {
		s = v.([]*ble.Service)
	}
	return s, ret.Error(1)
}

func (m *MockClient) DiscoverIncludedServices(filter []ble.UUID, s *ble.Service) ([]*ble.Service, error) {
	ret := m.Called(filter, s)
	var out []*ble.Service
	if v := ret.Get(0); v != nil {
		out = v.([]*ble.Service)
	}
	return out, ret.Error(1)
}

func (m *MockClient) DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error) {
	ret := m.Called(filter, s)
	var out []*ble.Characteristic
	if v := ret.Get(0); v != nil {
		out = v.([]*ble.Characteristic)
	}
	return out, ret.Error(1)
}

func (m *MockClient) DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error) {
	ret := m.Called(filter, c)
	var out []*ble.Descriptor
	if v := ret.Get(0); v != nil {
		out = v.([]*ble.Descriptor)
	}
	return out, ret.Error(1)
}

func (m *MockClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	ret := m.Called(c)
	return bytesAt(ret, 0), ret.Error(1)
}

func (m *MockClient) ReadLongCharacteristic(c *ble.Characteristic) ([]byte, error) {
	ret := m.Called(c)
	return bytesAt(ret, 0), ret.Error(1)
}

func (m *MockClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	return m.Called(c, value, noRsp).Error(0)
}

func (m *MockClient) ReadDescriptor(d *ble.Descriptor) ([]byte, error) {
	ret := m.Called(d)
	return bytesAt(ret, 0), ret.Error(1)
}

func (m *MockClient) WriteDescriptor(d *ble.Descriptor, v []byte) error {
	return m.Called(d, v).Error(0)
}

func (m *MockClient) ReadRSSI() int {
	return m.Called().Int(0)
}

func (m *MockClient) ExchangeMTU(rxMTU int) (int, error) {
	ret := m.Called(rxMTU)
	return ret.Int(0), ret.Error(1)
}

func (m *MockClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	return m.Called(c, ind, h).Error(0)
}

func (m *MockClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	return m.Called(c, ind).Error(0)
}

func (m *MockClient) ClearSubscriptions() error {
	return m.Called().Error(0)
}

func (m *MockClient) CancelConnection() error {
	return m.Called().Error(0)
}

// Disconnected accepts either a chan struct{} or a <-chan struct{} as its return value.
func (m *MockClient) Disconnected() <-chan struct{} {
	switch ch := m.Called().Get(0).(type) {
	case chan struct{}:
		return ch
	case <-chan struct{}:
		return ch
	default:
		return nil
	}
}

func (m *MockClient) Conn() ble.Conn {
	ret := m.Called()
	if c := ret.Get(0); c != nil {
		return c.(ble.Conn)
	}
	return nil
}

func bytesAt(args mock.Arguments, i int) []byte {
	if v := args.Get(i); v != nil {
		return v.([]byte)
	}
	return nil
}
