package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/discovery"
	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/protocol"
)

const (
	// DefaultPort is the listen port of the bridge
	DefaultPort = 8765

	// WebSocketPath is where clients subscribe to the message stream
	WebSocketPath = "/ws"

	shutdownTimeout = 10 * time.Second
)

// Config holds the bridge configuration
type Config struct {
	Host     string
	Port     int
	Announce bool   // Advertise the bridge over mDNS
	Instance string // mDNS instance name, defaults to the hostname
}

// Server relays discovery messages to WebSocket subscribers. Every beacon
// is broadcast as one JSON text frame, and the last beacon of each device
// is kept so that new subscribers start with a full picture.
type Server struct {
	config   *Config
	listener net.Listener
	http     *http.Server
	upgrader websocket.Upgrader
	mdns     *zeroconf.Server
	wg       sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	clients map[*client]struct{}
	devices map[protocol.DeviceID]discovery.Message
}

// New creates a bridge. Nothing is bound until Listen or Serve.
func New(config *Config) *Server {
	if config == nil {
		config = &Config{Port: DefaultPort}
	}
	s := &Server{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		devices: make(map[protocol.DeviceID]discovery.Message),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)
	mux.HandleFunc("/devices", s.handleDevices)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: writeWait,
	}
	return s
}

// Listen binds the TCP listener
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	logging.Info("Bridge listening for connections", zap.String("addr", listener.Addr().String()))
	return nil
}

// Close releases the listener of a bridge that was never served
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.listener = nil
	return err
}

// Addr returns the bound address, or "" before Listen
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) port() int {
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return s.config.Port
}

// Serve relays msgs to subscribers until ctx is cancelled or msgs is
// closed, then shuts the bridge down.
func (s *Server) Serve(ctx context.Context, msgs <-chan discovery.Message) error {
	if err := s.Listen(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.http.Serve(s.listener)
	}()

	if s.config.Announce {
		instance := s.config.Instance
		if instance == "" {
			instance, _ = os.Hostname()
		}
		server, err := Announce(instance, s.port())
		if err != nil {
			logging.Warn("Failed to announce bridge over mDNS", zap.Error(err))
		} else {
			s.mdns = server
		}
	}

	for {
		select {
		case <-ctx.Done():
			logging.Info("Shutdown requested, stopping bridge...")
			return s.shutdown()
		case msg, ok := <-msgs:
			if !ok {
				logging.Info("Discovery stream ended, stopping bridge...")
				return s.shutdown()
			}
			s.publish(msg)
		case err := <-errChan:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("bridge stopped: %w", err)
		}
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// publish stores beacon messages and broadcasts every message
func (s *Server) publish(msg discovery.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to encode message", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Kind == discovery.MessageBeacon && msg.Beacon != nil {
		s.devices[msg.Beacon.ID] = msg
	}
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			logging.Warn("Dropping slow subscriber", zap.String("remote_addr", c.addr))
			s.removeLocked(c)
		}
	}
}

// Devices returns the last beacon of every device seen, ordered by id
func (s *Server) Devices() []discovery.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]discovery.Message, 0, len(s.devices))
	for _, msg := range s.devices {
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Beacon.ID.String() < out[j].Beacon.ID.String()
	})
	return out
}

// Shutdown gracefully shuts down the bridge
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down bridge...")

	if s.mdns != nil {
		s.mdns.Shutdown()
		s.mdns = nil
	}

	// Stop accepting new connections. Upgraded connections are hijacked, so
	// they are closed through their send channels below.
	if err := s.http.Shutdown(ctx); err != nil {
		logging.Error("Error closing listener", zap.Error(err))
	}

	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		logging.Info("Closing subscriber", zap.String("remote_addr", c.addr))
		s.removeLocked(c)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All subscribers closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return nil
}

// ClientCount returns the number of connected subscribers
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
