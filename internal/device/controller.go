package device

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/breeze"
	"github.com/muurk/switcher/internal/discovery"
	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/protocol"
	"github.com/muurk/switcher/internal/transport"
)

// DefaultEventBuffer is the capacity of the event channel
const DefaultEventBuffer = 16

// Sender performs one request/response exchange with a device.
// *transport.Session implements it.
type Sender interface {
	Send(ctx context.Context, packet []byte) ([]byte, error)
	Close() error
}

// Controller drives one device.
//
// A Controller has a single logical thread of control: callers must not
// issue a command before the previous one returned. Observe may be called
// from another goroutine.
type Controller struct {
	desc     protocol.Descriptor
	cfg      protocol.Config
	sender   Sender
	provider breeze.CapabilityProvider
	now      func() time.Time

	swingDelay time.Duration

	// session state, owned by the command path
	token protocol.SessionToken
	state SessionState

	// breeze capability set, loaded once
	caps *breeze.CapabilitySet

	mu     sync.Mutex // guards events against Close
	events chan Event
	closed bool
}

// Option configures a Controller
type Option func(*Controller)

// WithConfig overrides protocol.DefaultConfig
func WithConfig(cfg protocol.Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithSender replaces the TCP session, mainly for tests
func WithSender(s Sender) Option {
	return func(c *Controller) { c.sender = s }
}

// WithCapabilityProvider sets where breeze capability sets come from
func WithCapabilityProvider(p breeze.CapabilityProvider) Option {
	return func(c *Controller) { c.provider = p }
}

// WithEventBuffer sets the capacity of the event channel
func WithEventBuffer(n int) Option {
	return func(c *Controller) { c.events = make(chan Event, n) }
}

// WithSwingDelay overrides breeze.SeparatedSwingDelay
func WithSwingDelay(d time.Duration) Option {
	return func(c *Controller) { c.swingDelay = d }
}

// WithClock overrides the timestamp source of outbound packets
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller for desc. No connection is made until the first
// command.
func New(desc protocol.Descriptor, opts ...Option) *Controller {
	c := &Controller{
		desc:       desc,
		cfg:        protocol.DefaultConfig(),
		now:        time.Now,
		swingDelay: breeze.SeparatedSwingDelay,
		events:     make(chan Event, DefaultEventBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sender == nil {
		c.sender = transport.NewSession(desc.IP, desc.TCPPort())
	}
	return c
}

// Descriptor returns the device the controller drives
func (c *Controller) Descriptor() protocol.Descriptor { return c.desc }

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event { return c.events }

// emit delivers e without blocking. A full channel drops the event.
func (c *Controller) emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- e:
	default:
		logging.Warn("Event channel full, dropping event",
			zap.String("device_id", c.desc.ID.String()),
			zap.String("event", e.String()),
		)
	}
}

// Observe emits a StatusEvent when b was broadcast by the controlled
// device. It reports whether the beacon matched.
func (c *Controller) Observe(b *protocol.Beacon) bool {
	if b == nil || b.ID != c.desc.ID {
		return false
	}
	c.emit(&StatusEvent{
		DeviceID: b.ID,
		Switch:   b.Switch,
		Shutter:  b.Shutter,
		Breeze:   b.Breeze,
	})
	return true
}

// Watch feeds the beacons of a discovery stream to Observe until the
// stream closes or ctx is done. Ready messages are skipped.
func (c *Controller) Watch(ctx context.Context, msgs <-chan discovery.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if msg.Kind == discovery.MessageBeacon {
				c.Observe(msg.Beacon)
			}
		}
	}
}

// Close drops the connection and closes the event channel
func (c *Controller) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	c.mu.Unlock()

	c.Invalidate()
	return c.sender.Close()
}

func (c *Controller) fields() []zap.Field {
	return []zap.Field{
		zap.String("device_id", c.desc.ID.String()),
		zap.String("family", c.desc.Family.String()),
		zap.String("ip", c.desc.IP),
	}
}
