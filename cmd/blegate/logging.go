package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blegate/pkg/config"
)

// loadConfig reads --config and applies the logging flags on top of it.
// --log-level takes precedence over --verbose, which takes precedence over the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		switch level {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = level
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
		}
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	return cfg, nil
}

// configureLogger loads the config and builds its logger.
func configureLogger(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.NewLogger(), nil
}
