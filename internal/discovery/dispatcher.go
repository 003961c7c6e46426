package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/protocol"
)

const (
	// DefaultDiscoverTimeout is the default time Discover waits for a match
	DefaultDiscoverTimeout = 10 * time.Second

	// messageBuffer is the capacity of the Listen channel
	messageBuffer = 32
)

// ErrDiscoveryTimeout is returned by Discover when no matching beacon
// arrived in time.
var ErrDiscoveryTimeout = errors.New("no matching device found before timeout")

// Dispatcher listens for device beacons on every broadcast port. The beacon
// layout differs between device generations, so all ports are bound at once
// with one reader goroutine per socket.
type Dispatcher struct {
	cfg   protocol.Config
	host  string
	ports []int

	mu      sync.Mutex
	cancels map[int]context.CancelFunc
	nextID  int
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithConfig overrides protocol.DefaultConfig
func WithConfig(cfg protocol.Config) Option {
	return func(d *Dispatcher) { d.cfg = cfg }
}

// WithPorts overrides the broadcast ports of the config
func WithPorts(ports ...int) Option {
	return func(d *Dispatcher) { d.ports = ports }
}

// WithHost binds the listeners to one address instead of all interfaces
func WithHost(host string) Option {
	return func(d *Dispatcher) { d.host = host }
}

// NewDispatcher creates a dispatcher. No socket is bound until Listen or
// Discover is called.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:     protocol.DefaultConfig(),
		cancels: make(map[int]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.ports == nil {
		d.ports = d.cfg.BroadcastPorts
	}
	return d
}

// Ports returns the broadcast ports the dispatcher binds
func (d *Dispatcher) Ports() []int { return d.ports }

// bind opens one UDP socket per port. If any port cannot be bound, the
// sockets opened so far are closed.
func (d *Dispatcher) bind() ([]*net.UDPConn, error) {
	conns := make([]*net.UDPConn, 0, len(d.ports))
	for _, port := range d.ports {
		addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(d.host, strconv.Itoa(port)))
		if err != nil {
			closeAll(conns)
			return nil, fmt.Errorf("invalid listen address for port %d: %w", port, err)
		}
		conn, err := net.ListenUDP("udp4", addr)
		if err != nil {
			closeAll(conns)
			return nil, fmt.Errorf("failed to bind broadcast port %d: %w", port, err)
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

func closeAll(conns []*net.UDPConn) {
	for _, c := range conns {
		c.Close()
	}
}

// Listen binds every broadcast port and delivers a MessageReady followed by
// one MessageBeacon per matching beacon. The channel is closed, and every
// socket released, once ctx is cancelled or Close is called.
func (d *Dispatcher) Listen(ctx context.Context, filter Filter) (<-chan Message, error) {
	conns, err := d.bind()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	id := d.track(cancel)

	out := make(chan Message, messageBuffer)
	addrs := make([]string, len(conns))
	for i, c := range conns {
		addrs[i] = c.LocalAddr().String()
	}
	out <- Message{Kind: MessageReady, Addrs: addrs, ReceivedAt: time.Now()}

	logging.Debug("Listening for beacons",
		zap.Strings("addrs", addrs),
		zap.String("filter", filter.String()),
	)

	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func(conn *net.UDPConn, port int) {
			defer wg.Done()
			d.readLoop(ctx, conn, port, filter, out)
		}(conn, d.ports[i])
	}

	go func() {
		<-ctx.Done()
		closeAll(conns)
		wg.Wait()
		d.untrack(id)
		close(out)
		logging.Debug("Stopped listening for beacons", zap.Strings("addrs", addrs))
	}()

	return out, nil
}

func (d *Dispatcher) readLoop(ctx context.Context, conn *net.UDPConn, port int, filter Filter, out chan<- Message) {
	buf := make([]byte, protocol.MaxPacketSize)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() == nil {
				logging.Warn("Broadcast listener failed", zap.Int("port", port), zap.Error(err))
			}
			return
		}

		data := buf[:n]
		valid := d.cfg.IsValidBeacon(data)
		logging.LogBeacon(src.String(), port, data, valid)
		if !valid {
			continue
		}

		beacon, err := d.cfg.DecodeBeacon(data, src.IP.String())
		if err != nil {
			logging.Debug("Dropping malformed beacon", zap.Int("port", port), zap.Error(err))
			continue
		}
		if !filter.Match(beacon) {
			continue
		}

		msg := Message{Kind: MessageBeacon, Beacon: beacon, Port: port, ReceivedAt: time.Now()}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// Discover waits for the first beacon that matches filter and returns its
// descriptor. Every socket is closed before Discover returns.
func (d *Dispatcher) Discover(ctx context.Context, filter Filter, timeout time.Duration) (*protocol.Descriptor, error) {
	if timeout <= 0 {
		timeout = DefaultDiscoverTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msgs, err := d.Listen(tctx, filter)
	if err != nil {
		return nil, err
	}

	var found *protocol.Descriptor
	for msg := range msgs {
		if msg.Kind != MessageBeacon {
			continue
		}
		desc := msg.Beacon.Descriptor()
		found = &desc
		cancel()
		break
	}
	// wait for the listener to release its sockets
	for range msgs {
	}

	if found != nil {
		logging.Info("Device discovered",
			zap.String("device_id", found.ID.String()),
			zap.String("family", found.Family.String()),
			zap.String("ip", found.IP),
		)
		return found, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w (%s, %s)", ErrDiscoveryTimeout, filter, timeout)
}

// Scan collects every distinct device heard within timeout, in order of
// first appearance.
func (d *Dispatcher) Scan(ctx context.Context, timeout time.Duration) ([]protocol.Descriptor, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msgs, err := d.Listen(tctx, Filter{})
	if err != nil {
		return nil, err
	}

	seen := make(map[protocol.DeviceID]bool)
	devices := make([]protocol.Descriptor, 0)
	for msg := range msgs {
		if msg.Kind != MessageBeacon || seen[msg.Beacon.ID] {
			continue
		}
		seen[msg.Beacon.ID] = true
		devices = append(devices, msg.Beacon.Descriptor())
	}

	if err := ctx.Err(); err != nil {
		return devices, err
	}
	return devices, nil
}

// Close stops every running listener
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cancel := range d.cancels {
		cancel()
	}
	return nil
}

func (d *Dispatcher) track(cancel context.CancelFunc) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.cancels[d.nextID] = cancel
	return d.nextID
}

func (d *Dispatcher) untrack(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cancels, id)
}

// Discover is a convenience function using the default dispatcher
func Discover(ctx context.Context, filter Filter, timeout time.Duration) (*protocol.Descriptor, error) {
	return NewDispatcher().Discover(ctx, filter, timeout)
}
