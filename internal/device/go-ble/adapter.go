package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blegate/internal/device"
	"github.com/srg/blegate/internal/groutine"
)

const (
	// DefaultConnectTimeout applies when ConnectOptions carry no timeout.
	DefaultConnectTimeout = 10 * time.Second

	// notificationBuffer bounds the per-characteristic notification queue.
	notificationBuffer = 4
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newPlatformDevice

// tileLink is the single live link held by an Adapter.
type tileLink struct {
	client      ble.Client
	adv         device.Advertisement
	sendHeader  *ble.Characteristic
	sendPayload *ble.Characteristic
	headers     chan []byte
	payloads    chan []byte
	done        chan struct{}
}

// Adapter implements device.Adapter on top of go-ble, speaking TileBus RPCs over GATT.
// It holds at most one link; Connect while linked fails with device.ErrAlreadyConnected.
type Adapter struct {
	logger *logrus.Logger

	devMu sync.Mutex
	dev   ble.Device

	linkMu sync.Mutex
	link   *tileLink

	rpcMu sync.Mutex
}

// NewAdapter creates an Adapter. The radio is opened lazily on first use.
func NewAdapter(logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) device() (ble.Device, error) {
	a.devMu.Lock()
	defer a.devMu.Unlock()

	if a.dev != nil {
		return a.dev, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	a.dev = dev
	return dev, nil
}

// Scan listens for advertisements for the given duration. The latest advertisement
// per address wins; results keep first-seen order.
func (a *Adapter) Scan(ctx context.Context, duration time.Duration) ([]device.Advertisement, error) {
	dev, err := a.device()
	if err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var (
		mu    sync.Mutex
		order []string
		seen  = make(map[string]device.Advertisement)
	)

	a.logger.WithField("duration", duration).Info("Starting BLE scan...")

	err = dev.Scan(scanCtx, true, func(adv ble.Advertisement) {
		wrapped := NewBLEAdvertisement(adv)

		mu.Lock()
		defer mu.Unlock()
		if _, ok := seen[wrapped.Addr()]; !ok {
			order = append(order, wrapped.Addr())
			a.logger.WithFields(logrus.Fields{
				"id":      wrapped.ID(),
				"address": wrapped.Addr(),
				"rssi":    wrapped.RSSI(),
			}).Debug("Discovered new device")
		}
		seen[wrapped.Addr()] = wrapped
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("scan failed: %w", NormalizeError(err))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	mu.Lock()
	defer mu.Unlock()

	result := make([]device.Advertisement, 0, len(order))
	for _, addr := range order {
		result = append(result, seen[addr])
	}

	a.logger.WithField("device_count", len(result)).Info("BLE scan completed")
	return result, nil
}

// Connect dials the advertised device and prepares the TileBus characteristics.
func (a *Adapter) Connect(ctx context.Context, adv device.Advertisement, opts *device.ConnectOptions) error {
	a.linkMu.Lock()
	defer a.linkMu.Unlock()

	if a.link != nil {
		a.logger.WithField("address", adv.Addr()).Warn("Connection attempt while already connected")
		return &device.ConnectionError{
			State: device.AlreadyConnected,
			Msg:   fmt.Sprintf("radio is linked to %s", a.link.adv.Addr()),
		}
	}

	dev, err := a.device()
	if err != nil {
		return err
	}

	timeout := DefaultConnectTimeout
	if opts != nil && opts.ConnectTimeout > 0 {
		timeout = opts.ConnectTimeout
	}
	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.logger.WithFields(logrus.Fields{
		"address": adv.Addr(),
		"timeout": timeout,
	}).Info("Connecting to BLE device...")

	client, err := dev.Dial(connCtx, ble.NewAddr(adv.Addr()))
	if err != nil {
		return fmt.Errorf("failed to connect to device with address %q: %w", adv.Addr(), NormalizeError(err))
	}

	link, err := a.prepareLink(client, adv)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			a.logger.WithError(cancelErr).Warn("Failed to cancel connection after setup failure")
		}
		return err
	}
	a.link = link

	// Not every platform client reports disconnection.
	if notifier, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(context.Background(), "ble-link-monitor", func(context.Context) {
			select {
			case <-notifier.Disconnected():
				a.logger.WithField("address", adv.Addr()).Warn("BLE link dropped")
				a.dropLink(link)
			case <-link.done:
			}
		})
	}

	a.logger.WithField("address", adv.Addr()).Info("BLE device connected successfully")
	return nil
}

func (a *Adapter) prepareLink(client ble.Client, adv device.Advertisement) (*tileLink, error) {
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	chars := make(map[string]*ble.Characteristic)
	for _, svc := range profile.Services {
		if !svc.UUID.Equal(TileBusServiceUUID) {
			continue
		}
		for _, c := range svc.Characteristics {
			chars[c.UUID.String()] = c
		}
	}

	find := func(uuid ble.UUID) (*ble.Characteristic, error) {
		c, ok := chars[uuid.String()]
		if !ok {
			return nil, fmt.Errorf("%w: characteristic %s not found on %s", device.ErrUnsupported, uuid, adv.Addr())
		}
		return c, nil
	}

	link := &tileLink{
		client:   client,
		adv:      adv,
		headers:  make(chan []byte, notificationBuffer),
		payloads: make(chan []byte, notificationBuffer),
		done:     make(chan struct{}),
	}
	if link.sendHeader, err = find(TileBusSendHeaderUUID); err != nil {
		return nil, err
	}
	if link.sendPayload, err = find(TileBusSendPayloadUUID); err != nil {
		return nil, err
	}
	receiveHeader, err := find(TileBusReceiveHeaderUUID)
	if err != nil {
		return nil, err
	}
	receivePayload, err := find(TileBusReceivePayloadUUID)
	if err != nil {
		return nil, err
	}

	if err := client.Subscribe(receiveHeader, false, queueNotification(link.headers)); err != nil {
		return nil, fmt.Errorf("failed to subscribe to rpc response header: %w", NormalizeError(err))
	}
	if err := client.Subscribe(receivePayload, false, queueNotification(link.payloads)); err != nil {
		return nil, fmt.Errorf("failed to subscribe to rpc response payload: %w", NormalizeError(err))
	}
	return link, nil
}

// queueNotification copies each notification into ch, dropping the oldest when full.
func queueNotification(ch chan []byte) ble.NotificationHandler {
	return func(data []byte) {
		v := append([]byte(nil), data...)
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

// Disconnect tears down the link if there is one.
func (a *Adapter) Disconnect() error {
	a.linkMu.Lock()
	link := a.link
	a.linkMu.Unlock()

	if link == nil {
		a.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	a.dropLink(link)
	if err := link.client.CancelConnection(); err != nil {
		return fmt.Errorf("failed to disconnect from %s: %w", link.adv.Addr(), NormalizeError(err))
	}
	a.logger.WithField("address", link.adv.Addr()).Info("BLE device disconnected")
	return nil
}

func (a *Adapter) dropLink(link *tileLink) {
	a.linkMu.Lock()
	defer a.linkMu.Unlock()

	if a.link != link {
		return
	}
	close(link.done)
	a.link = nil
}

// RPC sends one TileBus RPC and waits for its response.
func (a *Adapter) RPC(ctx context.Context, address uint8, command uint16, payload []byte, timeout time.Duration) ([]byte, error) {
	header, err := EncodeRPCHeader(address, command, len(payload))
	if err != nil {
		return nil, err
	}

	a.linkMu.Lock()
	link := a.link
	a.linkMu.Unlock()
	if link == nil {
		return nil, device.ErrNotConnected
	}

	a.rpcMu.Lock()
	defer a.rpcMu.Unlock()

	drain(link.headers)
	drain(link.payloads)

	if len(payload) > 0 {
		if err := link.client.WriteCharacteristic(link.sendPayload, payload, false); err != nil {
			return nil, fmt.Errorf("failed to write rpc payload: %w", NormalizeError(err))
		}
	}
	if err := link.client.WriteCharacteristic(link.sendHeader, header, false); err != nil {
		return nil, fmt.Errorf("failed to write rpc header: %w", NormalizeError(err))
	}

	rpcCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := await(rpcCtx, link, link.headers)
	if err != nil {
		return nil, err
	}
	resp, err := DecodeRPCResponseHeader(raw)
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"address": address,
		"command": fmt.Sprintf("0x%04x", command),
		"status":  resp.Status,
		"length":  resp.PayloadLen,
	}).Debug("RPC response header received")

	if resp.PayloadLen == 0 {
		return []byte{}, nil
	}

	data, err := await(rpcCtx, link, link.payloads)
	if err != nil {
		return nil, err
	}
	if len(data) < resp.PayloadLen {
		return nil, fmt.Errorf("rpc response payload truncated: got %d bytes, want %d", len(data), resp.PayloadLen)
	}
	return data[:resp.PayloadLen], nil
}

func await(ctx context.Context, link *tileLink, ch <-chan []byte) ([]byte, error) {
	select {
	case data := <-ch:
		return data, nil
	case <-link.done:
		return nil, device.ErrNotConnected
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for rpc response: %v", device.ErrTimeout, ctx.Err())
	}
}

func drain(ch chan []byte) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
