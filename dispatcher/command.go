package dispatcher

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Command names on the wire.
const (
	CommandScan          = "scan"
	CommandConnect       = "connect"
	CommandOpenInterface = "open_interface"
	CommandSendRPC       = "send_rpc"
)

// Command is one decoded client request: Scan, Connect, OpenInterface, SendRPC or Unknown.
type Command interface {
	CommandName() string
}

// Scan discovers nearby devices. A zero Duration uses the dispatcher default.
type Scan struct {
	Duration time.Duration
}

// Connect opens a link to a device found by the most recent scan.
type Connect struct {
	UUID string
}

// OpenInterface is acknowledged without side effects.
type OpenInterface struct {
	Name string
}

// SendRPC runs one TileBus RPC on the linked device. A zero Timeout uses the
// dispatcher default.
type SendRPC struct {
	Address uint8
	Feature uint8
	Command uint8
	Payload []byte
	Timeout time.Duration
}

// Unknown is any request whose command name is missing or not recognized.
type Unknown struct {
	Command string
}

func (Scan) CommandName() string          { return CommandScan }
func (Connect) CommandName() string       { return CommandConnect }
func (OpenInterface) CommandName() string { return CommandOpenInterface }
func (SendRPC) CommandName() string       { return CommandSendRPC }
func (u Unknown) CommandName() string     { return u.Command }

// Word returns the 16-bit RPC command word: feature in the high byte.
func (c SendRPC) Word() uint16 {
	return uint16(c.Feature)<<8 | uint16(c.Command)
}

// ParseCommand builds a Command from a decoded request document.
// A missing or unrecognized command name yields Unknown, not an error; malformed
// fields of a recognized command are errors.
func ParseCommand(msg map[string]any) (Command, error) {
	name, _ := msg["command"].(string)

	switch name {
	case CommandScan:
		var cmd Scan
		if v, ok := msg["duration"]; ok && v != nil {
			d, ok := asDuration(v, time.Second)
			if !ok {
				return nil, fmt.Errorf("invalid scan duration %v", v)
			}
			cmd.Duration = d
		}
		return cmd, nil

	case CommandConnect:
		uuid, err := parseUUID(msg["uuid"])
		if err != nil {
			return nil, err
		}
		return Connect{UUID: uuid}, nil

	case CommandOpenInterface:
		iface, _ := msg["name"].(string)
		return OpenInterface{Name: iface}, nil

	case CommandSendRPC:
		var (
			cmd SendRPC
			err error
		)
		if cmd.Address, err = byteField(msg, "address"); err != nil {
			return nil, err
		}
		if cmd.Feature, err = byteField(msg, "feature"); err != nil {
			return nil, err
		}
		if cmd.Command, err = byteField(msg, "cmd"); err != nil {
			return nil, err
		}
		switch p := msg["payload"].(type) {
		case nil:
			cmd.Payload = []byte{}
		case []byte:
			cmd.Payload = p
		case string:
			cmd.Payload = []byte(p)
		default:
			return nil, fmt.Errorf("invalid rpc payload of type %T", p)
		}
		if v, ok := msg["timeout_ms"]; ok && v != nil {
			d, ok := asDuration(v, time.Millisecond)
			if !ok {
				return nil, fmt.Errorf("invalid rpc timeout %v", v)
			}
			cmd.Timeout = d
		}
		return cmd, nil

	default:
		return Unknown{Command: name}, nil
	}
}

// parseUUID accepts string IDs and integer IOTile UUIDs, rendered in decimal.
func parseUUID(v any) (string, error) {
	switch u := v.(type) {
	case nil:
		return "", nil
	case string:
		return u, nil
	}
	if n, ok := asInt(v); ok {
		return strconv.FormatInt(n, 10), nil
	}
	return "", fmt.Errorf("invalid device uuid of type %T", v)
}

func byteField(msg map[string]any, key string) (uint8, error) {
	v, ok := msg[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing %q", key)
	}
	n, ok := asInt(v)
	if !ok || n < 0 || n > math.MaxUint8 {
		return 0, fmt.Errorf("invalid %q: %v", key, v)
	}
	return uint8(n), nil
}

// asInt converts any msgpack integer, or an integral float, to int64.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return int64(n), float32(int64(n)) == n
	case float64:
		return int64(n), float64(int64(n)) == n
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// asDuration converts a non-negative count of unit into a Duration. NaN, infinities
// and counts beyond the Duration range are rejected.
func asDuration(v any, unit time.Duration) (time.Duration, bool) {
	n, ok := asFloat(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0, false
	}
	if n > float64(math.MaxInt64)/float64(unit) {
		return 0, false
	}
	return time.Duration(n * float64(unit)), true
}
