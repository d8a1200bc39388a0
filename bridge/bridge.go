// Package bridge runs the gateway server: it owns the socket transport, tracks the
// server lifecycle and forwards client frames to the dispatcher.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyStarted = errors.New("server already started")
	ErrStarting       = errors.New("cannot stop until fully started")
)

// StatusObserver is notified of every status transition.
type StatusObserver func(Status)

// ServerOptions contains the configuration for a Server
type ServerOptions struct {
	Logger *logrus.Logger // Logger instance
}

// Server is the gateway lifecycle state machine:
//
//	Stopped -> Starting -> Started <-> UserConnected
//
// Stop returns to Stopped from Started or UserConnected; a transport failure returns
// to Stopped from anywhere.
type Server struct {
	transport  SocketTransport
	dispatcher Dispatcher
	logger     *logrus.Logger

	mu       sync.Mutex
	status   Status
	address  *Address
	observer StatusObserver
	// pendingOpen records a client that connected before Start finished.
	pendingOpen bool

	// notifyMu keeps observer calls in transition order. It is taken before mu is
	// released, so observers may read the server but must not start or stop it.
	notifyMu sync.Mutex
}

// NewServer creates a stopped Server.
func NewServer(transport SocketTransport, dispatcher Dispatcher, opts *ServerOptions) *Server {
	logger := logrus.New()
	if opts != nil && opts.Logger != nil {
		logger = opts.Logger
	}

	return &Server{
		transport:  transport,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start binds the transport on port (0 for ephemeral). Only legal while Stopped.
func (s *Server) Start(ctx context.Context, port int) error {
	s.mu.Lock()
	if s.status != StatusStopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.transitionLocked(StatusStarting)

	s.logger.WithField("port", port).Info("Starting bridge server...")

	addr, err := s.transport.Start(ctx, port, socketEvents{s})

	s.mu.Lock()
	if err != nil {
		s.pendingOpen = false
		if s.status != StatusStopped {
			s.transitionLocked(StatusStopped)
		} else {
			s.mu.Unlock()
		}
		s.logger.WithError(err).Error("Failed to start bridge server")
		return fmt.Errorf("failed to start server: %w", err)
	}
	if s.status != StatusStarting {
		// The transport failed while we were waiting for it.
		s.mu.Unlock()
		return fmt.Errorf("failed to start server: transport stopped during start")
	}
	s.address = &addr
	s.transitionLocked(StatusStarted)

	s.logger.WithField("address", addr.String()).Info("Bridge server started")

	s.mu.Lock()
	if s.pendingOpen && s.status == StatusStarted {
		s.pendingOpen = false
		s.transitionLocked(StatusUserConnected)
		s.logger.Info("Client connected")
		return nil
	}
	s.pendingOpen = false
	s.mu.Unlock()
	return nil
}

// Stop unbinds the transport. It fails while Starting and is a no-op while Stopped.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusStarting:
		s.mu.Unlock()
		return ErrStarting
	case StatusStopped:
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// The transport may report OnClose while stopping, so mu is not held here.
	err := s.transport.Stop(ctx)

	s.mu.Lock()
	s.address = nil
	if s.status != StatusStopped {
		s.transitionLocked(StatusStopped)
	} else {
		s.mu.Unlock()
	}

	if err != nil {
		s.logger.WithError(err).Warn("Bridge transport did not stop cleanly")
		return fmt.Errorf("failed to stop server: %w", err)
	}
	s.logger.Info("Bridge server stopped")
	return nil
}

// OnStatusChange registers the single status observer, replacing any previous one.
// Pass nil to unregister. Observer panics are recovered and logged.
func (s *Server) OnStatusChange(observer StatusObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

// Status returns the current lifecycle state.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Address returns the bound address while the server is started.
func (s *Server) Address() (Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.address == nil {
		return Address{}, false
	}
	return *s.address, true
}

// InterfaceAddresses lists the local addresses a client could use to reach the server.
func (s *Server) InterfaceAddresses() ([]string, error) {
	return s.transport.Interfaces()
}

// transitionLocked moves to next, releases mu and notifies the observer.
func (s *Server) transitionLocked(next Status) {
	prev := s.status
	s.status = next
	observer := s.observer

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"from": prev.String(),
		"to":   next.String(),
	}).Debug("Bridge status changed")

	if observer != nil {
		s.notify(observer, next)
	}
}

func (s *Server) notify(observer StatusObserver, status Status) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{
				"status": status.String(),
				"panic":  r,
				"stack":  string(debug.Stack()),
			}).Error("Status observer panicked")
		}
	}()
	observer(status)
}

func (s *Server) onOpen() {
	s.mu.Lock()
	switch s.status {
	case StatusStarted:
	case StatusStarting:
		s.pendingOpen = true
		s.mu.Unlock()
		s.logger.Debug("Client connected during start")
		return
	default:
		s.logger.WithField("status", s.status.String()).Warn("Client opened while not accepting")
		s.mu.Unlock()
		return
	}
	s.transitionLocked(StatusUserConnected)
	s.logger.Info("Client connected")
}

func (s *Server) onClose() {
	dropped := s.dispatcher.DropConnections()

	s.mu.Lock()
	s.pendingOpen = false
	if s.status != StatusUserConnected {
		s.mu.Unlock()
		return
	}
	s.transitionLocked(StatusStarted)
	s.logger.WithField("dropped_connections", dropped).Info("Client disconnected")
}

func (s *Server) onFailure(err error) {
	s.logger.WithError(err).Error("Bridge transport failed")

	s.mu.Lock()
	s.address = nil
	s.pendingOpen = false
	if s.status == StatusStopped {
		s.mu.Unlock()
		return
	}
	s.transitionLocked(StatusStopped)
}

func (s *Server) onMessage(ctx context.Context, frame string) {
	resp := s.dispatcher.HandleFrame(ctx, frame)
	if err := s.transport.Send(ctx, resp); err != nil {
		s.logger.WithError(err).Warn("Failed to send response")
	}
}

// socketEvents keeps the event methods off the Server's exported API.
type socketEvents struct {
	s *Server
}

func (e socketEvents) OnOpen()                                     { e.s.onOpen() }
func (e socketEvents) OnMessage(ctx context.Context, frame string) { e.s.onMessage(ctx, frame) }
func (e socketEvents) OnClose()                                    { e.s.onClose() }
func (e socketEvents) OnFailure(err error)                         { e.s.onFailure(err) }
