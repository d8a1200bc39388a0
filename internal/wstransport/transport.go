// Package wstransport carries gateway frames over a websocket, one client at a time.
package wstransport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blegate/bridge"
	"github.com/srg/blegate/internal/groutine"
	"nhooyr.io/websocket"
)

const (
	DefaultPath         = "/"
	DefaultReadLimit    = 1 << 20
	DefaultWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second
)

var (
	ErrNoClient       = errors.New("no client connected")
	ErrAlreadyStarted = errors.New("transport already started")
)

// Options contains the configuration for a Transport
type Options struct {
	Host           string         // Interface to bind; empty binds all
	Path           string         // HTTP path of the websocket endpoint
	OriginPatterns []string       // Extra allowed browser origins
	ReadLimit      int64          // Largest inbound frame in bytes
	WriteTimeout   time.Duration  // Per-frame write deadline
	Logger         *logrus.Logger // Logger instance
}

// Transport is a bridge.SocketTransport over nhooyr.io/websocket. A second client
// is refused with 409 Conflict while one is connected. Only text frames are carried.
type Transport struct {
	opts   Options
	logger *logrus.Logger

	mu      sync.Mutex
	httpSrv *http.Server
	events  bridge.SocketEvents
	client  *websocket.Conn
	busy    bool
	loopCtx context.Context
	cancel  context.CancelFunc

	loops sync.WaitGroup
}

// New creates a stopped Transport.
func New(opts Options) *Transport {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Transport{opts: opts, logger: opts.Logger}
}

// Start binds host:port and begins accepting a client.
func (t *Transport) Start(ctx context.Context, port int, events bridge.SocketEvents) (bridge.Address, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.httpSrv != nil {
		return bridge.Address{}, ErrAlreadyStarted
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort(t.opts.Host, strconv.Itoa(port)))
	if err != nil {
		return bridge.Address{}, fmt.Errorf("websocket listen: %w", err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc(t.opts.Path, t.handleUpgrade)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	t.httpSrv = srv
	t.events = events
	t.loopCtx = baseCtx
	t.cancel = cancel

	groutine.Go(baseCtx, "ws-serve", func(context.Context) {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.serveFailed(srv, err)
		}
	})

	addr := boundAddress(listener.Addr())
	t.logger.WithField("address", addr.String()).Info("Websocket transport listening")
	return addr, nil
}

func boundAddress(a net.Addr) bridge.Address {
	tcp, ok := a.(*net.TCPAddr)
	if !ok {
		return bridge.Address{Address: a.String()}
	}
	host := tcp.IP.String()
	if tcp.IP.IsUnspecified() {
		host = "0.0.0.0"
	}
	return bridge.Address{Address: host, Port: tcp.Port}
}

func (t *Transport) serveFailed(srv *http.Server, err error) {
	t.mu.Lock()
	if t.httpSrv != srv {
		t.mu.Unlock()
		return
	}
	events := t.events
	t.httpSrv = nil
	t.cancel()
	t.mu.Unlock()

	t.logger.WithError(err).Error("Websocket server failed")
	events.OnFailure(fmt.Errorf("websocket serve: %w", err))
}

// Stop closes the client with StatusGoingAway, shuts the HTTP server down and waits
// for the read loop to finish.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	srv, client, cancel := t.httpSrv, t.client, t.cancel
	t.httpSrv = nil
	t.mu.Unlock()

	if srv == nil {
		return nil
	}

	if client != nil {
		if err := client.Close(websocket.StatusGoingAway, "server shutting down"); err != nil {
			t.logger.WithError(err).Debug("Websocket close handshake incomplete")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, shutdownTimeout)
	defer cancelShutdown()
	err := srv.Shutdown(shutdownCtx)

	cancel()
	t.loops.Wait()

	if err != nil {
		return fmt.Errorf("websocket shutdown: %w", err)
	}
	t.logger.Info("Websocket transport stopped")
	return nil
}

// Send writes one text frame to the connected client.
func (t *Transport) Send(ctx context.Context, frame string) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()

	if client == nil {
		return ErrNoClient
	}

	writeCtx, cancel := context.WithTimeout(ctx, t.opts.WriteTimeout)
	defer cancel()
	if err := client.Write(writeCtx, websocket.MessageText, []byte(frame)); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Interfaces lists the IPv4 addresses of the host's up, non-loopback interfaces.
func (t *Transport) Interfaces() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	var out []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			t.logger.WithError(err).WithField("interface", iface.Name).Debug("Skipping interface")
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				out = append(out, ip4.String())
			}
		}
	}
	return out, nil
}

func (t *Transport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	if t.httpSrv == nil {
		t.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if t.busy {
		t.mu.Unlock()
		t.logger.WithField("remote", r.RemoteAddr).Warn("Refusing second websocket client")
		http.Error(w, "client already connected", http.StatusConflict)
		return
	}
	t.busy = true
	t.mu.Unlock()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: t.opts.OriginPatterns,
	})
	if err != nil {
		t.logger.WithError(err).Warn("Websocket accept failed")
		t.mu.Lock()
		t.busy = false
		t.mu.Unlock()
		return
	}
	ws.SetReadLimit(t.opts.ReadLimit)

	t.mu.Lock()
	t.client = ws
	events, loopCtx := t.events, t.loopCtx
	t.mu.Unlock()

	t.logger.WithField("remote", r.RemoteAddr).Info("Websocket client connected")
	events.OnOpen()

	// The connection is hijacked; the read loop outlives this handler.
	remote := r.RemoteAddr
	groutine.GoTracked(loopCtx, &t.loops, "ws-read-loop", func(ctx context.Context) {
		t.readLoop(ctx, ws, events, remote)
	})
}

// readLoop delivers frames in arrival order until the client goes away or Stop.
func (t *Transport) readLoop(ctx context.Context, ws *websocket.Conn, events bridge.SocketEvents, remote string) {
	defer func() {
		ws.Close(websocket.StatusNormalClosure, "")

		t.mu.Lock()
		t.client = nil
		t.busy = false
		t.mu.Unlock()

		t.logger.WithField("remote", remote).Info("Websocket client disconnected")
		events.OnClose()
	}()

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 {
				t.logger.WithError(err).Debug("Websocket read ended")
			}
			return
		}
		if typ != websocket.MessageText {
			t.logger.WithField("type", int(typ)).Warn("Ignoring non-text websocket frame")
			continue
		}
		events.OnMessage(ctx, string(data))
	}
}
