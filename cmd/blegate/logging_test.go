package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("verbose", false, "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestConfigureLogger(t *testing.T) {
	dir := t.TempDir()
	warnConfig := filepath.Join(dir, "warn.yaml")
	require.NoError(t, os.WriteFile(warnConfig, []byte("log_level: warn\n"), 0o600))

	tests := []struct {
		name  string
		args  []string
		level logrus.Level
	}{
		{name: "defaults to info", level: logrus.InfoLevel},
		{name: "verbose enables debug", args: []string{"--verbose"}, level: logrus.DebugLevel},
		{name: "log-level wins over verbose", args: []string{"--verbose", "--log-level", "error"}, level: logrus.ErrorLevel},
		{name: "config file level", args: []string{"--config", warnConfig}, level: logrus.WarnLevel},
		{name: "flag wins over config file", args: []string{"--config", warnConfig, "--log-level", "debug"}, level: logrus.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, logger, err := configureLogger(newFlagCommand(t, tt.args...))
			require.NoError(t, err)
			assert.Equal(t, tt.level, logger.GetLevel())
		})
	}
}

func TestConfigureLogger_Errors(t *testing.T) {
	t.Run("invalid log level", func(t *testing.T) {
		_, _, err := configureLogger(newFlagCommand(t, "--log-level", "loud"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("missing config file", func(t *testing.T) {
		_, _, err := configureLogger(newFlagCommand(t, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
