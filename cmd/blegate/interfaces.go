package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/srg/blegate/internal/wstransport"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List addresses a client could use to reach the gateway",
	RunE:  runInterfaces,
}

func runInterfaces(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	transport := wstransport.New(wstransport.Options{Host: cfg.Host, Logger: logger})
	addrs, err := transport.Interfaces()
	if err != nil {
		return fmt.Errorf("failed to list interfaces: %w", err)
	}
	return displayInterfaces(cmd.OutOrStdout(), addrs, cfg.Port)
}

func displayInterfaces(w io.Writer, addrs []string, port int) error {
	if len(addrs) == 0 {
		_, err := fmt.Fprintln(w, "No usable network interfaces")
		return err
	}
	for _, a := range addrs {
		if _, err := fmt.Fprintf(w, "ws://%s:%s/\n", a, formatPort(port)); err != nil {
			return err
		}
	}
	return nil
}
