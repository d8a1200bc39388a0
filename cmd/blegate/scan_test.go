package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/srg/blegate/internal/device"
	"github.com/srg/blegate/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ScanTestSuite struct {
	CommandTestSuite
}

func (s *ScanTestSuite) seedDevices() {
	s.Radio.OnScan(
		testutils.CreateMockAdvertisement("16", "AA:00:00:00:00:16", -70).
			WithName("tile-16").WithVoltage(3.0).Build(),
		testutils.NewAdvertisementBuilder().
			FromJSON(`{"id": %q, "address": %q, "rssi": -40, "voltage": 2.5, "flags": %d}`,
				"42", "AA:00:00:00:00:42", device.FlagUserConnected|device.FlagLowVoltage).
			Build(),
	)
}

func (s *ScanTestSuite) TestScan_JSON() {
	s.seedDevices()

	stdout, _, err := s.ExecuteCommand("scan", "--duration", "10ms", "--format", "json")
	s.Require().NoError(err)

	var rows []deviceRow
	s.Require().NoError(json.Unmarshal([]byte(stdout), &rows))
	s.Require().Len(rows, 2)

	s.Equal("42", rows[0].UUID, "strongest signal MUST come first")
	s.True(rows[0].UserConnected)
	s.True(rows[0].LowVoltage)
	s.Equal("16", rows[1].UUID)
	s.Equal("AA:00:00:00:00:16", rows[1].Address)
	s.Equal(3.0, rows[1].Voltage)

	s.Radio.AssertCalled(s.T(), "Scan", mock.Anything, 10*time.Millisecond)
	s.Radio.AssertNumberOfCalls(s.T(), "Scan", 1)
}

func (s *ScanTestSuite) TestScan_Table() {
	s.seedDevices()

	stdout, stderr, err := s.ExecuteCommand("scan", "--duration", "10ms")
	s.Require().NoError(err)

	s.Contains(stdout, "UUID")
	s.Contains(stdout, "tile-16")
	s.Contains(stdout, "connected,low-voltage")
	s.Contains(stdout, "-70 dBm")
	s.Contains(stderr, "Scanning", "progress MUST go to stderr")
}

func (s *ScanTestSuite) TestScan_Empty() {
	stdout, _, err := s.ExecuteCommand("scan", "--duration", "10ms")
	s.Require().NoError(err)
	s.Contains(stdout, "No devices discovered")
}

func (s *ScanTestSuite) TestScan_DurationFromConfig() {
	path := s.WriteConfig("scan_duration: 3s\noutput_format: json\n")

	stdout, _, err := s.ExecuteCommand("--config", path, "scan")
	s.Require().NoError(err)

	s.JSONEq("[]", stdout)
	s.Radio.AssertCalled(s.T(), "Scan", mock.Anything, 3*time.Second)
}

func (s *ScanTestSuite) TestScan_InvalidFormat() {
	_, _, err := s.ExecuteCommand("scan", "--format", "xml")
	s.Require().Error(err)
	s.Contains(err.Error(), "output_format")
	s.Radio.AssertNotCalled(s.T(), "Scan", mock.Anything, mock.Anything)
}

func (s *ScanTestSuite) TestScan_RadioError() {
	s.Radio.OnScanError(device.ErrBluetoothOff)

	_, _, err := s.ExecuteCommand("scan", "--duration", "10ms")
	s.Require().Error(err)
	s.ErrorIs(err, device.ErrBluetoothOff)
}

func TestScanTestSuite(t *testing.T) {
	suite.Run(t, new(ScanTestSuite))
}
