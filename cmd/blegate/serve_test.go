package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/srg/blegate/bridge"
	"github.com/srg/blegate/pkg/config"
	"github.com/stretchr/testify/suite"
)

type ServeTestSuite struct {
	CommandTestSuite
}

func (s *ServeTestSuite) newServer() *bridge.Server {
	cfg := config.DefaultConfig()
	cfg.Host = "127.0.0.1"
	return newGateway(cfg, cfg.NewLogger())
}

func (s *ServeTestSuite) TestServe_RunsUntilCancelled() {
	server := s.newServer()
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- serve(ctx, server, 0, out) }()

	s.Require().Eventually(func() bool {
		return server.Status() == bridge.StatusStarted
	}, 2*time.Second, 10*time.Millisecond)

	addr, ok := server.Address()
	s.Require().True(ok)
	s.NotZero(addr.Port, "ephemeral port MUST be resolved")

	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.FailNow("serve did not return after cancel")
	}

	s.Equal(bridge.StatusStopped, server.Status())
	text := out.String()
	s.Contains(text, "Listening on 127.0.0.1:")
	s.Contains(text, "status: starting\nstatus: started\n")
	s.Contains(text, "status: stopped\n")
}

func (s *ServeTestSuite) TestServe_BindFailure() {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	defer busy.Close()

	server := s.newServer()
	out := &syncBuffer{}

	err = serve(context.Background(), server, busy.Addr().(*net.TCPAddr).Port, out)
	s.Require().Error(err)
	s.Contains(err.Error(), "failed to start server")
	s.Equal(bridge.StatusStopped, server.Status())
	s.Contains(out.String(), "status: stopped\n")
}

func (s *ServeTestSuite) TestServe_InvalidPortFlag() {
	_, _, err := s.ExecuteCommand("serve", "--port", "70000")
	s.Require().Error(err)
	s.Contains(err.Error(), "port")
}

func TestServeTestSuite(t *testing.T) {
	suite.Run(t, new(ServeTestSuite))
}
