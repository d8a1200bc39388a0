package goble

import (
	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockAdvertisement is a mock of ble.Advertisement.
type MockAdvertisement struct {
	mock.Mock
}

var _ ble.Advertisement = (*MockAdvertisement)(nil)

// NewMockAdvertisement returns an advertisement from addr answering every accessor.
// Missing manufacturer data and name are reported as empty.
func NewMockAdvertisement(addr string, rssi int, name string, manufacturerData []byte) *MockAdvertisement {
	m := &MockAdvertisement{}
	m.On("Addr").Return(ble.NewAddr(addr)).Maybe()
	m.On("RSSI").Return(rssi).Maybe()
	m.On("LocalName").Return(name).Maybe()
	m.On("ManufacturerData").Return(manufacturerData).Maybe()
	m.On("Connectable").Return(true).Maybe()
	m.On("ServiceData").Return([]ble.ServiceData(nil)).Maybe()
	m.On("Services").Return([]ble.UUID(nil)).Maybe()
	m.On("OverflowService").Return([]ble.UUID(nil)).Maybe()
	m.On("SolicitedService").Return([]ble.UUID(nil)).Maybe()
	m.On("TxPowerLevel").Return(0).Maybe()
	return m
}

func (m *MockAdvertisement) LocalName() string {
	return m.Called().String(0)
}

func (m *MockAdvertisement) ManufacturerData() []byte {
	return bytesAt(m.Called(), 0)
}

func (m *MockAdvertisement) ServiceData() []ble.ServiceData {
	if v := m.Called().Get(0); v != nil {
		return v.([]ble.ServiceData)
	}
	return nil
}

func (m *MockAdvertisement) Services() []ble.UUID {
	return uuidsAt(m.Called(), 0)
}

func (m *MockAdvertisement) OverflowService() []ble.UUID {
	return uuidsAt(m.Called(), 0)
}

func (m *MockAdvertisement) TxPowerLevel() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Connectable() bool {
	return m.Called().Bool(0)
}

func (m *MockAdvertisement) SolicitedService() []ble.UUID {
	return uuidsAt(m.Called(), 0)
}

func (m *MockAdvertisement) RSSI() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Addr() ble.Addr {
	if v := m.Called().Get(0); v != nil {
		return v.(ble.Addr)
	}
	return nil
}

func uuidsAt(args mock.Arguments, i int) []ble.UUID {
	if v := args.Get(i); v != nil {
		return v.([]ble.UUID)
	}
	return nil
}
