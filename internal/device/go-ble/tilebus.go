package goble

import (
	"fmt"
	"strconv"

	"github.com/go-ble/ble"
	"github.com/srg/blegate/internal/device"
)

// MaxRPCPayload is the largest payload a single TileBus RPC can carry in either
// direction (one ATT write/notification at the default MTU).
const MaxRPCPayload = 20

// TileBus GATT layout.
var (
	TileBusServiceUUID        = ble.MustParse("00002000-3FF7-53BA-E611-132C0FF60F63")
	TileBusSendHeaderUUID     = ble.MustParse("00002001-3FF7-53BA-E611-132C0FF60F63")
	TileBusSendPayloadUUID    = ble.MustParse("00002002-3FF7-53BA-E611-132C0FF60F63")
	TileBusReceiveHeaderUUID  = ble.MustParse("00002003-3FF7-53BA-E611-132C0FF60F63")
	TileBusReceivePayloadUUID = ble.MustParse("00002004-3FF7-53BA-E611-132C0FF60F63")
)

// FormatTileID renders an IOTile UUID the way clients address devices.
func FormatTileID(uuid uint32) string {
	return strconv.FormatUint(uint64(uuid), 10)
}

// EncodeRPCHeader builds the 5-byte request header:
// payload length, reserved, command (little-endian), tile address.
func EncodeRPCHeader(address uint8, command uint16, payloadLen int) ([]byte, error) {
	if payloadLen > MaxRPCPayload {
		return nil, fmt.Errorf("%w: %d bytes, max %d", device.ErrPayloadTooLarge, payloadLen, MaxRPCPayload)
	}
	return []byte{byte(payloadLen), 0, byte(command & 0xFF), byte(command >> 8), address}, nil
}

// RPCResponseHeader is the 4-byte header a device notifies after executing an RPC.
type RPCResponseHeader struct {
	Status     uint8
	PayloadLen int
}

// DecodeRPCResponseHeader parses a response header notification.
func DecodeRPCResponseHeader(data []byte) (RPCResponseHeader, error) {
	if len(data) < 4 {
		return RPCResponseHeader{}, fmt.Errorf("rpc response header too short: %d bytes", len(data))
	}
	hdr := RPCResponseHeader{Status: data[0], PayloadLen: int(data[2])}
	if hdr.PayloadLen > MaxRPCPayload {
		return RPCResponseHeader{}, fmt.Errorf("rpc response declares %d payload bytes, max %d", hdr.PayloadLen, MaxRPCPayload)
	}
	return hdr, nil
}
