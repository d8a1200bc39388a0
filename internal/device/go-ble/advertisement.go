package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/blegate/internal/device"
)

// BLEAdvertisement wraps ble.Advertisement to implement device.Advertisement interface.
// IOTile manufacturer data, when present, supplies the device ID, flags and voltage;
// otherwise the radio address doubles as the ID.
type BLEAdvertisement struct {
	adv  ble.Advertisement
	addr string
	tile *device.TileManufacturerData
}

// NewBLEAdvertisement creates a new BLEAdvertisement wrapper
func NewBLEAdvertisement(adv ble.Advertisement) *BLEAdvertisement {
	a := &BLEAdvertisement{adv: adv, addr: adv.Addr().String()}

	if parsed, err := device.ParseManufacturerData(device.UnknownCompanyID, adv.ManufacturerData()); err == nil {
		if tile, ok := parsed.(*device.TileManufacturerData); ok {
			a.tile = tile
		}
	}
	return a
}

func (a *BLEAdvertisement) ID() string {
	if a.tile != nil {
		return FormatTileID(a.tile.UUID)
	}
	return a.addr
}

func (a *BLEAdvertisement) Addr() string             { return a.addr }
func (a *BLEAdvertisement) LocalName() string        { return a.adv.LocalName() }
func (a *BLEAdvertisement) ManufacturerData() []byte { return a.adv.ManufacturerData() }
func (a *BLEAdvertisement) Connectable() bool        { return a.adv.Connectable() }
func (a *BLEAdvertisement) RSSI() int                { return a.adv.RSSI() }

func (a *BLEAdvertisement) Flags() device.Flags {
	if a.tile == nil {
		return 0
	}
	return a.tile.Flags
}

func (a *BLEAdvertisement) Voltage() float64 {
	if a.tile == nil {
		return 0
	}
	return a.tile.Voltage
}

// IsTile reports whether the advertisement carried IOTile manufacturer data.
func (a *BLEAdvertisement) IsTile() bool {
	return a.tile != nil
}

// Unwrap returns the underlying ble.Advertisement for internal use within go-ble package
func (a *BLEAdvertisement) Unwrap() ble.Advertisement {
	return a.adv
}
