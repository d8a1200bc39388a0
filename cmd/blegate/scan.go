package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/blegate/internal/device"
	"github.com/srg/blegate/internal/devicefactory"
	"github.com/srg/blegate/pkg/config"
	"github.com/srg/blegate/registry"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for TileBus devices",
	Long: `Scan for advertising TileBus devices and list them the way a gateway client
would see them: device ID, radio address, signal strength, voltage and flags.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (defaults to scan_duration from config)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "", "Output format (table, json)")
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	if scanDuration > 0 {
		cfg.ScanDuration = scanDuration
	}
	if scanFormat != "" {
		cfg.OutputFormat = scanFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter := devicefactory.NewAdapter(logger, devicefactory.Options{Locked: cfg.RadioLock})
	devices := registry.NewDevices(adapter, logger)

	progress := newScanProgress(cmd.ErrOrStderr(), "Scanning", cfg.ScanDuration, "Processing results")
	progress.Start()
	ads, err := devices.ScanWithProgress(ctx, cfg.ScanDuration, progress.Callback())
	progress.Stop()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("scan failed: %w", err)
	}
	return displayDevices(cmd.OutOrStdout(), ads, cfg.OutputFormat)
}

// deviceRow is the JSON shape of one scanned device.
type deviceRow struct {
	UUID          string  `json:"uuid"`
	Name          string  `json:"name,omitempty"`
	Address       string  `json:"connection_string"`
	RSSI          int     `json:"signal_strength"`
	Voltage       float64 `json:"voltage"`
	UserConnected bool    `json:"user_connected"`
	LowVoltage    bool    `json:"low_voltage"`
	PendingData   bool    `json:"pending_data"`
}

func toRows(ads []device.Advertisement) []deviceRow {
	rows := make([]deviceRow, 0, len(ads))
	for _, adv := range ads {
		flags := adv.Flags()
		rows = append(rows, deviceRow{
			UUID:          adv.ID(),
			Name:          adv.LocalName(),
			Address:       adv.Addr(),
			RSSI:          adv.RSSI(),
			Voltage:       adv.Voltage(),
			UserConnected: flags.UserConnected(),
			LowVoltage:    flags.LowVoltage(),
			PendingData:   flags.PendingData(),
		})
	}
	// Strongest signal first
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].RSSI > rows[j].RSSI })
	return rows
}

func displayDevices(w io.Writer, ads []device.Advertisement, format string) error {
	rows := toRows(ads)

	switch format {
	case config.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)
	case config.FormatTable:
		return displayDevicesTable(w, rows)
	default:
		return fmt.Errorf("invalid format '%s': must be one of [table json]", format)
	}
}

func displayDevicesTable(out io.Writer, rows []deviceRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "No devices discovered")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UUID\tNAME\tADDRESS\tRSSI\tVOLTAGE\tFLAGS")
	for _, r := range rows {
		name := r.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d dBm\t%.2f V\t%s\n",
			r.UUID, name, r.Address, r.RSSI, r.Voltage, flagSummary(r))
	}
	return w.Flush()
}

func flagSummary(r deviceRow) string {
	var s string
	add := func(set bool, name string) {
		if !set {
			return
		}
		if s != "" {
			s += ","
		}
		s += name
	}
	add(r.UserConnected, "connected")
	add(r.LowVoltage, "low-voltage")
	add(r.PendingData, "pending-data")
	if s == "" {
		return "-"
	}
	return s
}
