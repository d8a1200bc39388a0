package bridge

import (
	"net"
	"strconv"
)

// Status is the lifecycle state of a Server.
type Status int32

const (
	StatusStopped Status = iota
	StatusStarting
	StatusStarted
	StatusUserConnected
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusStarted:
		return "started"
	case StatusUserConnected:
		return "user_connected"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Address is where a started server accepts its client.
type Address struct {
	Address string
	Port    int
}

func (a Address) String() string {
	return net.JoinHostPort(a.Address, strconv.Itoa(a.Port))
}
