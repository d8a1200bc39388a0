package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/srg/blegate/internal/device"
)

// Advertisement is a static device.Advertisement used by tests.
type Advertisement struct {
	IDValue       string       `json:"id"`
	Address       string       `json:"address"`
	Name          string       `json:"name"`
	RSSIValue     int          `json:"rssi"`
	IsConnectable bool         `json:"connectable"`
	ManufData     []byte       `json:"manufacturerData"`
	FlagBits      device.Flags `json:"flags"`
	VoltageValue  float64      `json:"voltage"`
}

func (a *Advertisement) ID() string               { return a.IDValue }
func (a *Advertisement) Addr() string             { return a.Address }
func (a *Advertisement) LocalName() string        { return a.Name }
func (a *Advertisement) RSSI() int                { return a.RSSIValue }
func (a *Advertisement) Connectable() bool        { return a.IsConnectable }
func (a *Advertisement) ManufacturerData() []byte { return a.ManufData }
func (a *Advertisement) Flags() device.Flags      { return a.FlagBits }
func (a *Advertisement) Voltage() float64         { return a.VoltageValue }

// AdvertisementBuilder builds static advertisements for testing.
// Unset fields fall back to values derived from the ID so every built
// advertisement is usable as is.
type AdvertisementBuilder struct {
	adv Advertisement
}

// NewAdvertisementBuilder creates a new AdvertisementBuilder.
// The builder starts with connectable=true.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: Advertisement{IsConnectable: true}}
}

// WithID sets the device identifier.
func (b *AdvertisementBuilder) WithID(id string) *AdvertisementBuilder {
	b.adv.IDValue = id
	return b
}

// WithAddress sets the radio address used as the connection string.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

// WithName sets the local name for the advertisement.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

// WithRSSI sets the signal strength for the advertisement.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.RSSIValue = rssi
	return b
}

// WithConnectable sets whether the device accepts connections.
func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.IsConnectable = c
	return b
}

// WithManufacturerData sets the manufacturer-specific data.
func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.adv.ManufData = data
	return b
}

// WithFlags sets the advertised status flags.
func (b *AdvertisementBuilder) WithFlags(flags device.Flags) *AdvertisementBuilder {
	b.adv.FlagBits = flags
	return b
}

// WithVoltage sets the advertised battery voltage.
func (b *AdvertisementBuilder) WithVoltage(v float64) *AdvertisementBuilder {
	b.adv.VoltageValue = v
	return b
}

// FromJSON fills builder fields from a JSON string with format support.
// Panics on invalid JSON as this is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)
	if err := json.Unmarshal([]byte(jsonStr), &b.adv); err != nil {
		panic(fmt.Sprintf("FromJSON: failed to unmarshal advertisement: %v", err))
	}
	return b
}

// Build returns the advertisement.
func (b *AdvertisementBuilder) Build() *Advertisement {
	adv := b.adv
	if adv.Address == "" {
		adv.Address = "addr-" + adv.IDValue
	}
	return &adv
}

// Advertisements builds one advertisement per id with default values.
func Advertisements(ids ...string) []device.Advertisement {
	ads := make([]device.Advertisement, 0, len(ids))
	for i, id := range ids {
		ads = append(ads, NewAdvertisementBuilder().WithID(id).WithRSSI(-40-i).Build())
	}
	return ads
}
