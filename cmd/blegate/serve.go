package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blegate/bridge"
	"github.com/srg/blegate/dispatcher"
	"github.com/srg/blegate/internal/devicefactory"
	"github.com/srg/blegate/internal/ringchan"
	"github.com/srg/blegate/internal/wstransport"
	"github.com/srg/blegate/pkg/config"
	"github.com/srg/blegate/registry"
)

const (
	statusBufferSize   = 16
	serveStopTimeout   = 10 * time.Second
	errTransportFailed = "gateway transport failed"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket gateway",
	Long: `Bind a websocket server and bridge a single client to the BLE radio.

Clients send base64-encoded msgpack maps with a "command" field:

  scan            {"command":"scan","duration":2}
  connect         {"command":"connect","uuid":"16"}
  open_interface  {"command":"open_interface","name":"rpc"}
  send_rpc        {"command":"send_rpc","address":8,"feature":10,"cmd":4,"payload":<bin>,"timeout_ms":3000}

Closing the websocket disconnects every device the client opened.
Press Ctrl+C to stop.`,
	RunE: runServe,
}

var (
	servePort      int
	serveHost      string
	serveRadioLock bool
)

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to bind, 0 picks a free one (defaults to port from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Interface to bind (defaults to host from config)")
	serveCmd.Flags().BoolVar(&serveRadioLock, "radio-lock", false, "Serialize radio access through a write-aware lock")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = serveHost
	}
	if cmd.Flags().Changed("radio-lock") {
		cfg.RadioLock = serveRadioLock
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := newGateway(cfg, logger)
	return serve(ctx, server, cfg.Port, cmd.OutOrStdout())
}

// newGateway wires the radio, registries, dispatcher and websocket transport.
func newGateway(cfg *config.Config, logger *logrus.Logger) *bridge.Server {
	adapter := devicefactory.NewAdapter(logger, devicefactory.Options{Locked: cfg.RadioLock})

	disp := dispatcher.New(
		registry.NewDevices(adapter, logger),
		registry.NewConnections(),
		adapter,
		dispatcher.Options{
			DefaultScanDuration: cfg.ScanDuration,
			DefaultRPCTimeout:   cfg.RPCTimeout,
			ConnectTimeout:      cfg.ConnectTimeout,
		},
		logger,
	)

	transport := wstransport.New(wstransport.Options{
		Host:   cfg.Host,
		Logger: logger,
	})

	return bridge.NewServer(transport, disp, &bridge.ServerOptions{Logger: logger})
}

// serve starts server and blocks until ctx is cancelled or the transport fails.
// Status changes are printed to out as they happen.
func serve(ctx context.Context, server *bridge.Server, port int, out io.Writer) error {
	statuses := ringchan.New[bridge.Status](statusBufferSize)
	failed := make(chan struct{}, 1)
	var running bool

	server.OnStatusChange(func(st bridge.Status) {
		statuses.ForceSend(st)
		if st == bridge.StatusStarted {
			running = true
		}
		if st == bridge.StatusStopped && running {
			select {
			case failed <- struct{}{}:
			default:
			}
		}
	})

	printer := newStatusPrinter(out)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for st := range statuses.C() {
			printer.Print(st)
		}
	}()
	defer func() {
		server.OnStatusChange(nil)
		statuses.Close()
		<-printed
	}()

	if err := server.Start(ctx, port); err != nil {
		return err
	}

	addr, _ := server.Address()
	ifaces, err := server.InterfaceAddresses()
	if err != nil {
		return fmt.Errorf("failed to list interfaces: %w", err)
	}
	printer.Listening(addr, ifaces)

	select {
	case <-ctx.Done():
	case <-failed:
		return errors.New(errTransportFailed)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), serveStopTimeout)
	defer cancel()
	return server.Stop(stopCtx)
}
