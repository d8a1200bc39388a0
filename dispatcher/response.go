package dispatcher

import "github.com/srg/blegate/internal/device"

// Failure reasons reported to the client.
const (
	ReasonUnknownCommand   = "Unknown command sent"
	ReasonUnhandled        = "An unhandled exception occurred during message processing"
	ReasonDeviceNotScanned = "Could not find device by UUID, did you scan first?"

	reasonScanError    = "Error during scan: "
	reasonConnectError = "Error during connect: "
	reasonRPCError     = "Error sending RPC: "
)

// RPC status bits.
const (
	StatusResponseReceived uint8 = 1 << 6
	StatusHasPayload       uint8 = 1 << 7
)

// Result is the part every response carries.
type Result struct {
	Success bool   `msgpack:"success"`
	Reason  string `msgpack:"reason,omitempty"`
}

// DeviceSummary describes one scanned device.
type DeviceSummary struct {
	ConnectionString string  `msgpack:"connection_string"`
	UserConnected    bool    `msgpack:"user_connected"`
	UUID             string  `msgpack:"uuid"`
	SignalStrength   int     `msgpack:"signal_strength"`
	Voltage          float64 `msgpack:"voltage"`
}

type ScanResult struct {
	Result  `msgpack:",inline"`
	Devices []DeviceSummary `msgpack:"devices"`
}

type ConnectResult struct {
	Result           `msgpack:",inline"`
	ConnectionID     int    `msgpack:"connection_id"`
	ConnectionString string `msgpack:"connection_string"`
}

type RPCResult struct {
	Result  `msgpack:",inline"`
	Status  uint8  `msgpack:"status"`
	Payload []byte `msgpack:"payload"`
}

func failure(reason string) Result {
	return Result{Success: false, Reason: reason}
}

func summarize(adv device.Advertisement) DeviceSummary {
	return DeviceSummary{
		ConnectionString: adv.Addr(),
		UserConnected:    adv.Flags().UserConnected(),
		UUID:             adv.ID(),
		SignalStrength:   adv.RSSI(),
		Voltage:          adv.Voltage(),
	}
}

// rpcStatus marks the response as received, and as carrying data when payload is non-empty.
func rpcStatus(payload []byte) uint8 {
	status := StatusResponseReceived
	if len(payload) > 0 {
		status |= StatusHasPayload
	}
	return status
}
