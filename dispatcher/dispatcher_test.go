package dispatcher_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/srg/blegate/dispatcher"
	"github.com/srg/blegate/internal/codec"
	"github.com/srg/blegate/internal/device"
	"github.com/srg/blegate/internal/testutils"
	"github.com/srg/blegate/registry"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type DispatcherTestSuite struct {
	suite.Suite

	helper      *testutils.TestHelper
	adapter     *testutils.MockAdapter
	devices     *registry.Devices
	connections *registry.Connections
	dispatcher  *dispatcher.Dispatcher
}

func (s *DispatcherTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.adapter = testutils.NewMockAdapter(testutils.Advertisements("X", "Y")...)
	s.devices = registry.NewDevices(s.adapter, s.helper.Logger)
	s.connections = registry.NewConnections()
	s.dispatcher = dispatcher.New(s.devices, s.connections, s.adapter, dispatcher.Options{
		DefaultScanDuration: time.Second,
		DefaultRPCTimeout:   3 * time.Second,
		ConnectTimeout:      4 * time.Second,
	}, s.helper.Logger)
}

// send encodes msg, dispatches it and decodes the response into out.
func (s *DispatcherTestSuite) send(msg map[string]any, out any) {
	frame, err := codec.Encode(msg)
	s.Require().NoError(err)

	s.Require().NoError(codec.Decode(s.dispatcher.HandleFrame(context.Background(), frame), out))
}

func (s *DispatcherTestSuite) result(msg map[string]any) dispatcher.Result {
	var r dispatcher.Result
	s.send(msg, &r)
	return r
}

func (s *DispatcherTestSuite) scan() dispatcher.ScanResult {
	var r dispatcher.ScanResult
	s.send(map[string]any{"command": "scan", "duration": 2.0}, &r)
	s.Require().True(r.Success, r.Reason)
	return r
}

func (s *DispatcherTestSuite) connect(uuid any) dispatcher.ConnectResult {
	var r dispatcher.ConnectResult
	s.send(map[string]any{"command": "connect", "uuid": uuid}, &r)
	return r
}

func (s *DispatcherTestSuite) TestUnknownCommand() {
	s.Equal(dispatcher.Result{Reason: dispatcher.ReasonUnknownCommand}, s.result(map[string]any{"command": "bogus"}))
}

func (s *DispatcherTestSuite) TestMissingCommand() {
	s.Equal(dispatcher.Result{Reason: dispatcher.ReasonUnknownCommand}, s.result(map[string]any{"uuid": "X"}))
	s.Equal(dispatcher.Result{Reason: dispatcher.ReasonUnknownCommand}, s.result(map[string]any{"command": 7}))

	// Well-formed documents that are not maps carry no command either.
	for _, doc := range []any{[]any{"scan"}, "scan", 42, nil} {
		frame, err := codec.Encode(doc)
		s.Require().NoError(err)

		var r dispatcher.Result
		s.Require().NoError(codec.Decode(s.dispatcher.HandleFrame(context.Background(), frame), &r))
		s.Equal(dispatcher.Result{Reason: dispatcher.ReasonUnknownCommand}, r, "document %v", doc)
	}
	s.adapter.AssertNotCalled(s.T(), "Scan", mock.Anything, mock.Anything)
}

func (s *DispatcherTestSuite) TestUndecodableFrames() {
	for _, frame := range []string{"%%% not base64 %%%", "gg==", ""} {
		var r dispatcher.Result
		s.Require().NoError(codec.Decode(s.dispatcher.HandleFrame(context.Background(), frame), &r))
		s.Equal(dispatcher.Result{Reason: dispatcher.ReasonUnhandled}, r, "frame %q", frame)
	}
}

func (s *DispatcherTestSuite) TestScan_ReportsDeviceSummaries() {
	s.adapter.OnScan(
		testutils.NewAdvertisementBuilder().
			WithID("1234").
			WithAddress("C0:11:22:33:44:55").
			WithRSSI(-61).
			WithFlags(device.FlagUserConnected).
			WithVoltage(3.3).
			Build(),
	)

	r := s.scan()

	s.adapter.AssertCalled(s.T(), "Scan", mock.Anything, 2*time.Second)
	s.Equal([]dispatcher.DeviceSummary{{
		ConnectionString: "C0:11:22:33:44:55",
		UserConnected:    true,
		UUID:             "1234",
		SignalStrength:   -61,
		Voltage:          3.3,
	}}, r.Devices)
}

func (s *DispatcherTestSuite) TestScan_DefaultDurationAndEmptyResult() {
	s.adapter.OnScan()

	var r dispatcher.ScanResult
	s.send(map[string]any{"command": "scan"}, &r)

	s.True(r.Success)
	s.Empty(r.Devices)
	s.adapter.AssertCalled(s.T(), "Scan", mock.Anything, time.Second)

	m, err := codec.DecodeMap(s.dispatcher.HandleFrame(context.Background(), mustFrame(s, map[string]any{"command": "scan"})))
	s.Require().NoError(err)
	s.Contains(m, "devices", "an empty scan still reports a device list")
}

func (s *DispatcherTestSuite) TestScan_AdapterError() {
	s.adapter.OnScanError(errors.New("radio unavailable"))

	r := s.result(map[string]any{"command": "scan", "duration": 1})
	s.False(r.Success)
	s.Equal("Error during scan: radio unavailable", r.Reason)
}

func (s *DispatcherTestSuite) TestScanThenConnect_IDsAreMonotonic() {
	s.scan()

	first := s.connect("X")
	s.True(first.Success, first.Reason)
	s.Equal(1, first.ConnectionID)
	s.Equal("addr-X", first.ConnectionString)

	second := s.connect("Y")
	s.True(second.Success, second.Reason)
	s.Equal(2, second.ConnectionID)

	s.Equal(2, s.dispatcher.DropConnections())

	third := s.connect("X")
	s.Equal(3, third.ConnectionID, "connection ids are never reused")

	s.adapter.AssertNumberOfCalls(s.T(), "Connect", 3)
	s.adapter.AssertCalled(s.T(), "Connect", mock.Anything, mock.Anything, &device.ConnectOptions{ConnectTimeout: 4 * time.Second})
}

func (s *DispatcherTestSuite) TestConnect_UnknownDevice() {
	s.scan()

	r := s.connect("Z")
	s.False(r.Success)
	s.Equal(dispatcher.ReasonDeviceNotScanned, r.Reason)
	s.adapter.AssertNotCalled(s.T(), "Connect", mock.Anything, mock.Anything, mock.Anything)
	s.Equal(0, s.connections.Len())
}

func (s *DispatcherTestSuite) TestConnect_BeforeAnyScan() {
	r := s.connect("X")
	s.Equal(dispatcher.ReasonDeviceNotScanned, r.Reason)
}

func (s *DispatcherTestSuite) TestConnect_StaleIDAfterRescan() {
	s.scan()
	s.adapter.OnScan(testutils.Advertisements("Y")...)
	s.scan()

	r := s.connect("X")
	s.Equal(dispatcher.ReasonDeviceNotScanned, r.Reason)
}

func (s *DispatcherTestSuite) TestConnect_IntegerUUID() {
	s.adapter.OnScan(testutils.Advertisements("4660")...)
	s.scan()

	r := s.connect(uint32(0x1234))
	s.True(r.Success, r.Reason)
	s.Equal(1, r.ConnectionID)
}

func (s *DispatcherTestSuite) TestConnect_AdapterError() {
	s.scan()
	s.adapter.OnConnect(errors.New("link refused"))

	r := s.connect("X")
	s.False(r.Success)
	s.Equal("Error during connect: link refused", r.Reason)
	s.Equal(0, s.connections.Len())
}

func (s *DispatcherTestSuite) TestOpenInterface() {
	s.Equal(dispatcher.Result{Success: true}, s.result(map[string]any{"command": "open_interface", "name": "rpc"}))
	s.Equal(dispatcher.Result{Success: true}, s.result(map[string]any{"command": "open_interface"}))
}

func (s *DispatcherTestSuite) TestSendRPC_WithResponsePayload() {
	s.adapter.OnRPC([]byte{0xaa, 0xbb}, nil)

	var r dispatcher.RPCResult
	s.send(map[string]any{
		"command":    "send_rpc",
		"address":    8,
		"feature":    0x0A,
		"cmd":        0x04,
		"payload":    []byte{0x01},
		"timeout_ms": 250,
	}, &r)

	s.True(r.Success, r.Reason)
	s.Equal(uint8(0xC0), r.Status)
	s.Equal([]byte{0xaa, 0xbb}, r.Payload)

	s.adapter.AssertCalled(s.T(), "RPC", mock.Anything, uint8(8), uint16(0x0A04), []byte{0x01}, 250*time.Millisecond)
	s.adapter.AssertNumberOfCalls(s.T(), "RPC", 1)
}

func (s *DispatcherTestSuite) TestSendRPC_EmptyResponse() {
	var r dispatcher.RPCResult
	s.send(map[string]any{"command": "send_rpc", "address": 11, "feature": 0, "cmd": 4}, &r)

	s.True(r.Success)
	s.Equal(dispatcher.StatusResponseReceived, r.Status)
	s.NotNil(r.Payload)
	s.Empty(r.Payload)

	// Default timeout and an empty payload.
	s.adapter.AssertCalled(s.T(), "RPC", mock.Anything, uint8(11), uint16(0x0004), mock.MatchedBy(func(p []byte) bool {
		return p != nil && len(p) == 0
	}), 3*time.Second)
}

func (s *DispatcherTestSuite) TestSendRPC_AdapterError() {
	s.adapter.OnRPC(nil, device.ErrNotConnected)

	r := s.result(map[string]any{"command": "send_rpc", "address": 8, "feature": 1, "cmd": 2})
	s.False(r.Success)
	s.Equal("Error sending RPC: "+device.ErrNotConnected.Error(), r.Reason)
}

func (s *DispatcherTestSuite) TestSendRPC_MalformedFields() {
	for name, msg := range map[string]map[string]any{
		"missing address":   {"command": "send_rpc", "feature": 1, "cmd": 2},
		"address too large": {"command": "send_rpc", "address": 300, "feature": 1, "cmd": 2},
		"string feature":    {"command": "send_rpc", "address": 8, "feature": "one", "cmd": 2},
		"payload as number": {"command": "send_rpc", "address": 8, "feature": 1, "cmd": 2, "payload": 5},
		"negative timeout":  {"command": "send_rpc", "address": 8, "feature": 1, "cmd": 2, "timeout_ms": -1},
		"nan timeout":       {"command": "send_rpc", "address": 8, "feature": 1, "cmd": 2, "timeout_ms": math.NaN()},
		"infinite timeout":  {"command": "send_rpc", "address": 8, "feature": 1, "cmd": 2, "timeout_ms": math.Inf(1)},
		"overflow timeout":  {"command": "send_rpc", "address": 8, "feature": 1, "cmd": 2, "timeout_ms": 1e300},
	} {
		s.Equal(dispatcher.Result{Reason: dispatcher.ReasonUnknownCommand}, s.result(msg), name)
	}
	s.adapter.AssertNotCalled(s.T(), "RPC", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *DispatcherTestSuite) TestScan_InvalidDuration() {
	for name, duration := range map[string]any{
		"negative": -1.0,
		"nan":      math.NaN(),
		"infinite": math.Inf(1),
		"overflow": 1e300,
		"string":   "soon",
	} {
		r := s.result(map[string]any{"command": "scan", "duration": duration})
		s.Equal(dispatcher.Result{Reason: dispatcher.ReasonUnknownCommand}, r, name)
	}
	s.adapter.AssertNotCalled(s.T(), "Scan", mock.Anything, mock.Anything)
}

func (s *DispatcherTestSuite) TestHandlerPanicIsContained() {
	s.adapter.OnRPC(nil, nil).Panic("boom")

	r := s.result(map[string]any{"command": "send_rpc", "address": 8, "feature": 1, "cmd": 2})
	s.Equal(dispatcher.Result{Reason: dispatcher.ReasonUnhandled}, r)

	// The dispatcher keeps working after a panic.
	s.adapter.OnRPC(nil, nil)
	r = s.result(map[string]any{"command": "open_interface"})
	s.True(r.Success)
}

func (s *DispatcherTestSuite) TestDropConnections_DisconnectsOncePerRecord() {
	s.scan()
	s.connect("X")
	s.connect("Y")

	s.Equal(2, s.dispatcher.DropConnections())
	s.adapter.AssertNumberOfCalls(s.T(), "Disconnect", 2)
	s.Equal(0, s.connections.Len())

	s.Equal(0, s.dispatcher.DropConnections())
	s.adapter.AssertNumberOfCalls(s.T(), "Disconnect", 2)
}

func TestDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func mustFrame(s *DispatcherTestSuite, msg map[string]any) string {
	frame, err := codec.Encode(msg)
	s.Require().NoError(err)
	return frame
}
