// Package dispatcher executes client requests against the device registries and the
// radio adapter. Every inbound frame yields exactly one response frame.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blegate/internal/codec"
	"github.com/srg/blegate/internal/device"
	"github.com/srg/blegate/registry"
)

const (
	DefaultScanDuration   = 2 * time.Second
	DefaultRPCTimeout     = 5 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// Options tunes the dispatcher. Zero values fall back to the package defaults.
type Options struct {
	DefaultScanDuration time.Duration
	DefaultRPCTimeout   time.Duration
	ConnectTimeout      time.Duration
}

// Dispatcher routes commands to their handlers one at a time.
type Dispatcher struct {
	devices     *registry.Devices
	connections *registry.Connections
	adapter     device.Adapter
	opts        Options
	logger      *logrus.Logger

	mu sync.Mutex
}

var unhandledFrame = mustEncode(failure(ReasonUnhandled))

// New creates a Dispatcher.
func New(devices *registry.Devices, connections *registry.Connections, adapter device.Adapter, opts Options, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.DefaultScanDuration <= 0 {
		opts.DefaultScanDuration = DefaultScanDuration
	}
	if opts.DefaultRPCTimeout <= 0 {
		opts.DefaultRPCTimeout = DefaultRPCTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	return &Dispatcher{
		devices:     devices,
		connections: connections,
		adapter:     adapter,
		opts:        opts,
		logger:      logger,
	}
}

// HandleFrame decodes one wire frame, executes it and returns the encoded response.
// Undecodable frames and handler panics produce the unhandled-exception failure.
// Documents that are not maps and malformed commands are unknown commands.
func (d *Dispatcher) HandleFrame(ctx context.Context, frame string) string {
	resp := d.handleFrame(ctx, frame)

	out, err := codec.Encode(resp)
	if err != nil {
		d.logger.WithError(err).Error("Failed to encode response")
		return unhandledFrame
	}
	return out
}

func (d *Dispatcher) handleFrame(ctx context.Context, frame string) (resp any) {
	msg, err := codec.DecodeMap(frame)
	if errors.Is(err, codec.ErrNotMap) {
		d.logger.WithError(err).Warn("Inbound message carries no command")
		return failure(ReasonUnknownCommand)
	}
	if err != nil {
		d.logger.WithError(err).Warn("Failed to decode inbound message")
		return failure(ReasonUnhandled)
	}

	cmd, err := ParseCommand(msg)
	if err != nil {
		d.logger.WithError(err).WithField("command", msg["command"]).Warn("Malformed command")
		return failure(ReasonUnknownCommand)
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"command": cmd.CommandName(),
				"panic":   r,
				"stack":   string(debug.Stack()),
			}).Error("Command handler panicked")
			resp = failure(ReasonUnhandled)
		}
	}()

	return d.Handle(ctx, cmd)
}

// Handle executes a parsed command and returns its response value.
func (d *Dispatcher) Handle(ctx context.Context, cmd Command) any {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.WithField("command", cmd.CommandName()).Debug("Dispatching command")

	switch c := cmd.(type) {
	case Scan:
		return d.scan(ctx, c)
	case Connect:
		return d.connect(ctx, c)
	case OpenInterface:
		return Result{Success: true}
	case SendRPC:
		return d.sendRPC(ctx, c)
	default:
		return failure(ReasonUnknownCommand)
	}
}

func (d *Dispatcher) scan(ctx context.Context, c Scan) any {
	duration := c.Duration
	if duration <= 0 {
		duration = d.opts.DefaultScanDuration
	}

	ads, err := d.devices.Scan(ctx, duration)
	if err != nil {
		d.logger.WithError(err).Warn("Scan failed")
		return failure(reasonScanError + err.Error())
	}

	summaries := make([]DeviceSummary, 0, len(ads))
	for _, adv := range ads {
		summaries = append(summaries, summarize(adv))
	}
	return ScanResult{Result: Result{Success: true}, Devices: summaries}
}

func (d *Dispatcher) connect(ctx context.Context, c Connect) any {
	adv, ok := d.devices.Lookup(c.UUID)
	if !ok {
		d.logger.WithField("uuid", c.UUID).Info("Connect requested for unknown device")
		return failure(ReasonDeviceNotScanned)
	}

	if err := d.adapter.Connect(ctx, adv, &device.ConnectOptions{ConnectTimeout: d.opts.ConnectTimeout}); err != nil {
		d.logger.WithError(err).WithField("uuid", c.UUID).Warn("Connect failed")
		return failure(reasonConnectError + err.Error())
	}

	rec := d.connections.Open(adv)
	d.logger.WithFields(logrus.Fields{
		"uuid":          c.UUID,
		"connection_id": rec.ID,
		"address":       adv.Addr(),
	}).Info("Device connected")

	return ConnectResult{
		Result:           Result{Success: true},
		ConnectionID:     rec.ID,
		ConnectionString: adv.Addr(),
	}
}

func (d *Dispatcher) sendRPC(ctx context.Context, c SendRPC) any {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = d.opts.DefaultRPCTimeout
	}

	payload, err := d.adapter.RPC(ctx, c.Address, c.Word(), c.Payload, timeout)
	if err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"address": c.Address,
			"command": fmt.Sprintf("0x%04x", c.Word()),
		}).Warn("RPC failed")
		return failure(reasonRPCError + err.Error())
	}
	if payload == nil {
		payload = []byte{}
	}

	return RPCResult{
		Result:  Result{Success: true},
		Status:  rpcStatus(payload),
		Payload: payload,
	}
}

// DropConnections disconnects once per outstanding connection and forgets them all.
// It returns the number of connections dropped.
func (d *Dispatcher) DropConnections() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	records := d.connections.Records()
	for _, rec := range records {
		if err := d.adapter.Disconnect(); err != nil {
			d.logger.WithError(err).WithField("connection_id", rec.ID).Warn("Failed to disconnect device")
		}
	}
	d.connections.Clear()

	if len(records) > 0 {
		d.logger.WithField("count", len(records)).Info("Dropped client connections")
	}
	return len(records)
}

func mustEncode(v any) string {
	out, err := codec.Encode(v)
	if err != nil {
		panic(err)
	}
	return out
}
