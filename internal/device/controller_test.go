package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/muurk/switcher/internal/breeze"
	"github.com/muurk/switcher/internal/discovery"
	"github.com/muurk/switcher/internal/protocol"
	"github.com/muurk/switcher/internal/transport"
)

var testToken = protocol.SessionToken{0xde, 0xad, 0xbe, 0xef}

// response builds a device reply of size bytes with a valid header
func response(size int, fill func(b []byte)) []byte {
	b := make([]byte, size)
	b[0], b[1] = 0xfe, 0xf0
	binary.LittleEndian.PutUint16(b[2:], uint16(size))
	if fill != nil {
		fill(b)
	}
	return b
}

// fakeSender answers logins with testToken, status queries with status and
// every other request with a short ack. fail, when set, is consulted first.
type fakeSender struct {
	mu     sync.Mutex
	reqs   [][]byte
	status []byte
	fail   func(req []byte) error
	closed bool
}

func (s *fakeSender) Send(ctx context.Context, packet []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, append([]byte(nil), packet...))

	if s.fail != nil {
		if err := s.fail(packet); err != nil {
			return nil, err
		}
	}

	var cmd [2]byte
	copy(cmd[:], packet[6:8])
	switch cmd {
	case protocol.CommandLogin, protocol.CommandLoginV2:
		return response(48, func(b []byte) { copy(b[8:12], testToken[:]) }), nil
	case protocol.CommandStatus:
		return s.status, nil
	default:
		return response(44, nil), nil
	}
}

func (s *fakeSender) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSender) commands() [][2]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][2]byte, len(s.reqs))
	for i, r := range s.reqs {
		copy(out[i][:], r[6:8])
	}
	return out
}

func (s *fakeSender) last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs[len(s.reqs)-1]
}

func newTestController(t *testing.T, family protocol.Family, s *fakeSender, opts ...Option) *Controller {
	t.Helper()
	desc := protocol.Descriptor{
		ID:     protocol.DeviceID{0xaa, 0xbb, 0xcc},
		IP:     "192.0.2.10",
		Family: family,
	}
	opts = append([]Option{
		WithSender(s),
		WithClock(func() time.Time { return time.Unix(1600000000, 0) }),
	}, opts...)
	c := New(desc, opts...)
	t.Cleanup(func() { c.Close() })
	return c
}

// drain returns the events currently buffered
func drain(c *Controller) []Event {
	var out []Event
	for {
		select {
		case e := <-c.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestLoginCachesToken(t *testing.T) {
	s := &fakeSender{}
	c := newTestController(t, protocol.V4, s)
	ctx := context.Background()

	if err := c.TurnOn(ctx, 30); err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}
	if err := c.TurnOff(ctx); err != nil {
		t.Fatalf("TurnOff() error = %v", err)
	}

	want := [][2]byte{protocol.CommandLogin, protocol.CommandControl, protocol.CommandControl}
	got := s.commands()
	if len(got) != len(want) {
		t.Fatalf("commands = %x, want %x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command[%d] = %x, want %x", i, got[i], want[i])
		}
	}

	p, err := protocol.Parse(s.last(), protocol.LayoutAuth)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Session != testToken {
		t.Errorf("session = %s, want %s", p.Session, testToken)
	}
	if c.SessionState() != Authenticated {
		t.Errorf("SessionState() = %s", c.SessionState())
	}

	events := drain(c)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	on, ok := events[0].(*StateChangedEvent)
	if !ok || on.Power != protocol.On || on.Minutes != 30 {
		t.Errorf("events[0] = %v", events[0])
	}
	off, ok := events[1].(*StateChangedEvent)
	if !ok || off.Power != protocol.Off {
		t.Errorf("events[1] = %v", events[1])
	}
}

func TestLegacyLoginPacket(t *testing.T) {
	s := &fakeSender{}
	c := newTestController(t, protocol.PowerPlug, s)

	if _, err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	req := s.last()
	if len(req) != 0x52 {
		t.Errorf("login length = %d, want %d", len(req), 0x52)
	}
	if !bytes.Equal(req[4:6], protocol.VersionLegacy[:]) {
		t.Errorf("version = %x", req[4:6])
	}
	if err := protocol.Verify(req, c.cfg.Key); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestOneShotCommandsLogInEveryTime(t *testing.T) {
	s := &fakeSender{}
	c := newTestController(t, protocol.Runner, s)
	ctx := context.Background()

	if err := c.SetPosition(ctx, 40, 0); err != nil {
		t.Fatalf("SetPosition() error = %v", err)
	}
	if err := c.Stop(ctx, 0); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	want := [][2]byte{
		protocol.CommandLoginV2, protocol.CommandControl,
		protocol.CommandLoginV2, protocol.CommandControl,
	}
	got := s.commands()
	if len(got) != len(want) {
		t.Fatalf("commands = %x, want %x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command[%d] = %x, want %x", i, got[i], want[i])
		}
	}
	if c.SessionState() != NoSession {
		t.Errorf("SessionState() = %s, want no-session", c.SessionState())
	}

	events := drain(c)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if ev, ok := events[0].(*PositionChangedEvent); !ok || ev.Position != 40 || ev.Gang != 0 {
		t.Errorf("event = %v", events[0])
	}
}

func TestLoginFailure(t *testing.T) {
	s := &fakeSender{
		fail: func(req []byte) error {
			return &transport.ConnectionError{Type: transport.ErrTypeConnectionRefused, IP: "192.0.2.10", Port: 9957, Err: errors.New("refused")}
		},
	}
	c := newTestController(t, protocol.V3, s)

	err := c.TurnOn(context.Background(), 0)
	var lerr *LoginError
	if !errors.As(err, &lerr) {
		t.Fatalf("error = %v, want *LoginError", err)
	}
	if !transport.IsConnectionError(err) {
		t.Error("LoginError does not wrap the connection error")
	}
	if c.SessionState() != NoSession {
		t.Errorf("SessionState() = %s", c.SessionState())
	}

	events := drain(c)
	if len(events) != 1 || events[0].Kind() != EventError {
		t.Fatalf("events = %v, want one ErrorEvent", events)
	}
}

func TestLoginShortResponse(t *testing.T) {
	c := newTestController(t, protocol.V4, &fakeSender{})
	c.sender = senderFunc(func(ctx context.Context, packet []byte) ([]byte, error) {
		return response(6, nil), nil
	})

	_, err := c.Login(context.Background())
	var derr *protocol.DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *protocol.DecodeError", err)
	}
}

type senderFunc func(ctx context.Context, packet []byte) ([]byte, error)

func (f senderFunc) Send(ctx context.Context, packet []byte) ([]byte, error) { return f(ctx, packet) }
func (f senderFunc) Close() error                                            { return nil }

func TestConnectionErrorInvalidatesSession(t *testing.T) {
	calls := 0
	s := &fakeSender{}
	s.fail = func(req []byte) error {
		calls++
		if calls == 2 {
			return &transport.ConnectionError{Type: transport.ErrTypeClosed, IP: "192.0.2.10", Port: 9957, Err: errors.New("reset")}
		}
		return nil
	}
	c := newTestController(t, protocol.V4, s)

	if err := c.TurnOn(context.Background(), 0); !transport.IsConnectionError(err) {
		t.Fatalf("error = %v, want connection error", err)
	}
	if c.SessionState() != NoSession {
		t.Errorf("SessionState() = %s, want no-session", c.SessionState())
	}
	if events := drain(c); len(events) != 1 || events[0].Kind() != EventError {
		t.Errorf("events = %v, want one ErrorEvent", events)
	}

	// next command logs in again
	if err := c.TurnOff(context.Background()); err != nil {
		t.Fatalf("TurnOff() error = %v", err)
	}
	cmds := s.commands()
	if cmds[2] != protocol.CommandLogin {
		t.Errorf("command after failure = %x, want login", cmds[2])
	}
}

func TestCancelledSendInvalidatesSession(t *testing.T) {
	for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
		t.Run(cause.Error(), func(t *testing.T) {
			calls := 0
			s := &fakeSender{}
			s.fail = func(req []byte) error {
				calls++
				if calls == 2 {
					return fmt.Errorf("send to 192.0.2.10:9957: %w", cause)
				}
				return nil
			}
			c := newTestController(t, protocol.V4, s)

			if err := c.TurnOn(context.Background(), 0); !errors.Is(err, cause) {
				t.Fatalf("error = %v, want %v", err, cause)
			}
			if c.SessionState() != NoSession {
				t.Errorf("SessionState() = %s, want no-session", c.SessionState())
			}

			if err := c.TurnOff(context.Background()); err != nil {
				t.Fatalf("TurnOff() error = %v", err)
			}
			if cmds := s.commands(); cmds[2] != protocol.CommandLogin {
				t.Errorf("command after cancel = %x, want login", cmds[2])
			}
		})
	}
}

func TestUnsupportedOperations(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		family protocol.Family
		op     func(c *Controller) error
	}{
		{"turn on runner", protocol.Runner, func(c *Controller) error { return c.TurnOn(ctx, 0) }},
		{"position on switch", protocol.V4, func(c *Controller) error { return c.SetPosition(ctx, 10, 0) }},
		{"light on runner", protocol.Runner, func(c *Controller) error { return c.SetLight(ctx, 0, true) }},
		{"breeze on switch", protocol.Mini, func(c *Controller) error { return c.SetBreezeState(ctx, breeze.State{}) }},
		{"shutdown on breeze", protocol.Breeze, func(c *Controller) error {
			_, err := c.SetDefaultShutdown(ctx, 3600)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSender{}
			c := newTestController(t, tt.family, s)
			if err := tt.op(c); !errors.Is(err, ErrUnsupported) {
				t.Errorf("error = %v, want ErrUnsupported", err)
			}
			if len(s.commands()) != 0 {
				t.Error("unsupported operation reached the device")
			}
		})
	}
}

func TestArgumentValidation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		family protocol.Family
		op     func(c *Controller) error
	}{
		{"negative timer", protocol.V4, func(c *Controller) error { return c.TurnOn(ctx, -1) }},
		{"position above 100", protocol.Runner, func(c *Controller) error { return c.SetPosition(ctx, 101, 0) }},
		{"second gang on single runner", protocol.Runner, func(c *Controller) error { return c.SetPosition(ctx, 50, 1) }},
		{"third gang on s12", protocol.S12, func(c *Controller) error { return c.Stop(ctx, 2) }},
		{"second light on s12", protocol.S12, func(c *Controller) error { return c.SetLight(ctx, 1, true) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSender{}
			c := newTestController(t, tt.family, s)
			err := tt.op(c)
			if err == nil {
				t.Fatal("error = nil")
			}
			if errors.Is(err, ErrUnsupported) {
				t.Errorf("error = %v, want a validation error", err)
			}
			if len(s.commands()) != 0 {
				t.Error("invalid request reached the device")
			}
		})
	}
}

func TestSetDefaultShutdownClamps(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{100, 3600},
		{999999, 86340},
		{7200, 7200},
	}

	for _, tt := range tests {
		s := &fakeSender{}
		c := newTestController(t, protocol.V2ESP, s)

		got, err := c.SetDefaultShutdown(context.Background(), tt.in)
		if err != nil {
			t.Fatalf("SetDefaultShutdown(%d) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("SetDefaultShutdown(%d) = %d, want %d", tt.in, got, tt.want)
		}

		p, err := protocol.Parse(s.last(), protocol.LayoutAuth)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		wire := binary.LittleEndian.Uint32(p.Payload[len(p.Payload)-4:])
		if int(wire) != tt.want {
			t.Errorf("wire seconds = %d, want %d", wire, tt.want)
		}

		events := drain(c)
		if len(events) != 1 {
			t.Fatalf("got %d events", len(events))
		}
		if ev := events[0].(*DurationChangedEvent); ev.Seconds != tt.want {
			t.Errorf("event seconds = %d, want %d", ev.Seconds, tt.want)
		}
	}
}

func switchStatus() []byte {
	return response(105, func(b []byte) {
		b[75] = 0x01
		binary.LittleEndian.PutUint16(b[77:], 1500)
		binary.LittleEndian.PutUint32(b[89:], 1200)
		binary.LittleEndian.PutUint32(b[97:], 7200)
	})
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		family protocol.Family
		status []byte
		check  func(t *testing.T, st protocol.Status)
	}{
		{
			name:   "switch",
			family: protocol.V4,
			status: switchStatus(),
			check: func(t *testing.T, st protocol.Status) {
				want := protocol.SwitchState{Power: protocol.On, PowerConsumption: 1500, RemainingSeconds: 1200, DefaultShutdownSeconds: 7200}
				if st.Switch == nil || *st.Switch != want {
					t.Errorf("Switch = %+v, want %+v", st.Switch, want)
				}
			},
		},
		{
			name:   "shutter",
			family: protocol.Runner,
			status: response(84, func(b []byte) {
				b[77] = 75
				b[79] = 0x01
			}),
			check: func(t *testing.T, st protocol.Status) {
				if st.Shutter == nil || len(st.Shutter.Channels) != 1 {
					t.Fatalf("Shutter = %+v", st.Shutter)
				}
				ch := st.Shutter.Channels[0]
				if ch.Position != 75 || ch.Direction != protocol.DirectionUp {
					t.Errorf("channel = %+v", ch)
				}
			},
		},
		{
			name:   "breeze",
			family: protocol.Breeze,
			status: breezeStatus(protocol.On),
			check: func(t *testing.T, st protocol.Status) {
				b := st.Breeze
				if b == nil {
					t.Fatal("Breeze = nil")
				}
				if b.Remote != "ELEC7022" || b.CurrentTemp != 24.5 || b.Mode != protocol.ModeCool || b.TargetTemp != 22 {
					t.Errorf("Breeze = %+v", b)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSender{status: tt.status}
			c := newTestController(t, tt.family, s)
			st, err := c.Status(context.Background())
			if err != nil {
				t.Fatalf("Status() error = %v", err)
			}
			tt.check(t, st)
		})
	}
}

func TestStatusMalformed(t *testing.T) {
	s := &fakeSender{status: response(60, nil)}
	c := newTestController(t, protocol.V4, s)

	_, err := c.Status(context.Background())
	var derr *protocol.DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *protocol.DecodeError", err)
	}
	// the session survives a bad payload
	if c.SessionState() != Authenticated {
		t.Errorf("SessionState() = %s", c.SessionState())
	}
}

func TestObserve(t *testing.T) {
	c := newTestController(t, protocol.V4, &fakeSender{})

	other := &protocol.Beacon{ID: protocol.DeviceID{0x01, 0x02, 0x03}}
	if c.Observe(other) {
		t.Error("Observe() matched a foreign beacon")
	}
	own := &protocol.Beacon{
		ID:     protocol.DeviceID{0xaa, 0xbb, 0xcc},
		Switch: &protocol.SwitchState{Power: protocol.On, PowerConsumption: 80},
	}
	if !c.Observe(own) {
		t.Fatal("Observe() did not match own beacon")
	}

	events := drain(c)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev, ok := events[0].(*StatusEvent)
	if !ok || ev.Switch.PowerConsumption != 80 {
		t.Errorf("event = %v", events[0])
	}
}

// switchBeacon returns a decoded 165-byte v4 beacon of a switch drawing watts
func switchBeacon(t *testing.T, id protocol.DeviceID, watts uint16) *protocol.Beacon {
	t.Helper()
	b := make([]byte, 165)
	b[0], b[1] = 0xfe, 0xf0
	copy(b[18:], id[:])
	copy(b[40:], "Boiler")
	b[75] = 0x0b
	b[133] = 0x01
	binary.LittleEndian.PutUint16(b[135:], watts)
	beacon, err := protocol.DecodeBeacon(b, "192.168.1.20")
	if err != nil {
		t.Fatalf("DecodeBeacon() error = %v", err)
	}
	return beacon
}

func TestWatchEmitsStatusEvents(t *testing.T) {
	c := newTestController(t, protocol.V4, &fakeSender{})

	msgs := make(chan discovery.Message, 4)
	msgs <- discovery.Message{Kind: discovery.MessageReady, Addrs: []string{"0.0.0.0:20002"}}
	msgs <- discovery.Message{Kind: discovery.MessageBeacon, Beacon: switchBeacon(t, protocol.DeviceID{0x01, 0x02, 0x03}, 10)}
	msgs <- discovery.Message{Kind: discovery.MessageBeacon, Beacon: switchBeacon(t, protocol.DeviceID{0xaa, 0xbb, 0xcc}, 1200)}
	close(msgs)

	done := make(chan struct{})
	go func() {
		c.Watch(context.Background(), msgs)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after the stream closed")
	}

	events := drain(c)
	if len(events) != 1 {
		t.Fatalf("events = %v, want one status event", events)
	}
	ev, ok := events[0].(*StatusEvent)
	if !ok || ev.Switch == nil || ev.Switch.Power != protocol.On || ev.Switch.PowerConsumption != 1200 {
		t.Errorf("event = %v", events[0])
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	c := newTestController(t, protocol.V4, &fakeSender{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Watch(ctx, make(chan discovery.Message))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestFullEventChannelDoesNotBlock(t *testing.T) {
	s := &fakeSender{}
	c := newTestController(t, protocol.V4, s, WithEventBuffer(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			c.TurnOn(context.Background(), 0)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("commands blocked on a full event channel")
	}
	if n := len(drain(c)); n != 1 {
		t.Errorf("buffered events = %d, want 1", n)
	}
}

func TestCloseClosesEvents(t *testing.T) {
	s := &fakeSender{}
	c := New(protocol.Descriptor{Family: protocol.V4}, WithSender(s))
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := <-c.Events(); ok {
		t.Error("event channel still open")
	}
	if !s.closed {
		t.Error("sender not closed")
	}
	// emit after close is a no-op
	c.emit(&ErrorEvent{Err: errors.New("late")})
	c.Close()
}
