package main

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/blegate/internal/device"
	"github.com/srg/blegate/internal/devicefactory"
	"github.com/srg/blegate/internal/testutils"
	"github.com/stretchr/testify/suite"
)

// CommandTestSuite swaps the platform radio for a MockAdapter and resets the
// command flags between tests. All cmd/blegate suites embed it.
type CommandTestSuite struct {
	suite.Suite
	Radio *testutils.MockAdapter

	originalRadioFactory func(*logrus.Logger) device.Adapter
}

func (s *CommandTestSuite) SetupTest() {
	s.Radio = testutils.NewMockAdapter()
	s.originalRadioFactory = devicefactory.RadioFactory
	devicefactory.RadioFactory = func(*logrus.Logger) device.Adapter { return s.Radio }

	scanDuration = 0
	scanFormat = ""
	servePort = 0
	serveHost = ""
	serveRadioLock = false
	for name, value := range map[string]string{"config": "", "log-level": "", "verbose": "false"} {
		s.Require().NoError(rootCmd.PersistentFlags().Set(name, value))
	}
}

func (s *CommandTestSuite) TearDownTest() {
	devicefactory.RadioFactory = s.originalRadioFactory
}

// ExecuteCommand runs the root command with args and returns stdout, stderr and the error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// WriteConfig writes a YAML config file and returns its path.
func (s *CommandTestSuite) WriteConfig(content string) string {
	path := filepath.Join(s.T().TempDir(), "blegate.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a reading test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
