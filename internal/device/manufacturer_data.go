package device

import (
	"encoding/binary"
	"fmt"
)

const (
	// UnknownCompanyID is a sentinel value indicating the company ID should be
	// extracted from the raw manufacturer data (first 2 bytes, little-endian).
	UnknownCompanyID uint16 = 0

	// TileCompanyID is the Bluetooth SIG company identifier carried by IOTile devices.
	TileCompanyID uint16 = 0x03C0
)

// ManufacturerDataParser parses company-specific manufacturer data
type ManufacturerDataParser func([]byte) (interface{}, error)

// VendorInfo interface allows parsed manufacturer data to expose vendor information.
type VendorInfo interface {
	VendorID() uint16
	VendorName() string
}

// manufacturerDataParsers maps company IDs to their parser functions
var manufacturerDataParsers = map[uint16]ManufacturerDataParser{
	TileCompanyID: parseTileManufacturerData,
}

// ParseManufacturerData parses BLE manufacturer data for a specific company.
//
// If companyID is UnknownCompanyID the company ID is taken from rawData[0:2]
// (little-endian), following the BLE convention. rawData always includes the
// company ID prefix.
//
// Returns (nil, nil) for companies without a registered parser.
func ParseManufacturerData(companyID uint16, rawData []byte) (interface{}, error) {
	if len(rawData) < 2 {
		return nil, fmt.Errorf("manufacturer data too short: %d bytes", len(rawData))
	}

	id := companyID
	if id == UnknownCompanyID {
		id = binary.LittleEndian.Uint16(rawData[0:2])
	}

	parser, exists := manufacturerDataParsers[id]
	if !exists {
		return nil, nil
	}

	return parser(rawData)
}

// IsParsableManufacturerData returns true if a parser exists for the company ID
func IsParsableManufacturerData(companyID uint16) bool {
	_, exists := manufacturerDataParsers[companyID]
	return exists
}

// -----------------------------------------------------------------------------
// IOTile Manufacturer Data
// -----------------------------------------------------------------------------

// TileManufacturerData represents parsed IOTile manufacturer data
//
// Format (8 or 10 bytes):
//   - Bytes 0-1: Company ID (0x03C0)
//   - Bytes 2-5: Device UUID (uint32, little-endian)
//   - Bytes 6-7: Flags (uint16, little-endian)
//   - Bytes 8-9: Battery voltage, optional (uint16 8.8 fixed point, little-endian)
type TileManufacturerData struct {
	UUID       uint32
	Flags      Flags
	Voltage    float64
	HasVoltage bool
}

// VendorID implements VendorInfo interface
func (t *TileManufacturerData) VendorID() uint16 {
	return TileCompanyID
}

// VendorName implements VendorInfo interface
func (t *TileManufacturerData) VendorName() string {
	return "Arch Systems"
}

// parseTileManufacturerData parses IOTile manufacturer data
func parseTileManufacturerData(data []byte) (interface{}, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("iotile manufacturer data too short: %d bytes, expected at least 8", len(data))
	}

	parsed := &TileManufacturerData{
		UUID:  binary.LittleEndian.Uint32(data[2:6]),
		Flags: Flags(binary.LittleEndian.Uint16(data[6:8])),
	}

	if len(data) >= 10 {
		parsed.Voltage = float64(binary.LittleEndian.Uint16(data[8:10])) / 256.0
		parsed.HasVoltage = true
	}

	return parsed, nil
}
