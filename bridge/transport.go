package bridge

import "context"

// SocketEvents receives what happens on a transport. Calls for one client arrive in
// order: OnOpen, any number of OnMessage, OnClose.
type SocketEvents interface {
	OnOpen()
	OnMessage(ctx context.Context, frame string)
	OnClose()
	// OnFailure reports that the transport stopped on its own and cannot recover.
	OnFailure(err error)
}

// SocketTransport carries text frames between the server and a single remote client.
type SocketTransport interface {
	// Start binds the transport. Port 0 picks an ephemeral port.
	Start(ctx context.Context, port int, events SocketEvents) (Address, error)
	// Stop unbinds the transport and closes any client. Stopping a stopped transport is a no-op.
	Stop(ctx context.Context) error
	// Send delivers one frame to the connected client.
	Send(ctx context.Context, frame string) error
	// Interfaces lists the local addresses a client could reach the transport on.
	Interfaces() ([]string, error)
}

// Dispatcher executes inbound frames for the server.
type Dispatcher interface {
	HandleFrame(ctx context.Context, frame string) string
	DropConnections() int
}
