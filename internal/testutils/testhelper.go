package testutils

import (
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper whose logger writes through t.Log.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	logger.SetOutput(testWriter{t})
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// testWriter routes log output into the test log so it only shows for failing tests.
type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

func CreateMockAdvertisement(id, address string, rssi int) *AdvertisementBuilder {
	return NewAdvertisementBuilder().WithID(id).WithAddress(address).WithRSSI(rssi)
}
