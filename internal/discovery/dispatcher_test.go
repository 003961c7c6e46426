package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/muurk/switcher/internal/protocol"
)

// beacon returns a 165-byte v4 switch beacon
func beacon(id [3]byte, name string) []byte {
	b := make([]byte, 165)
	b[0], b[1] = 0xfe, 0xf0
	copy(b[18:], id[:])
	copy(b[40:], name)
	b[75] = 0x17
	copy(b[76:], []byte{192, 168, 1, 20})
	b[133] = 0x01
	return b
}

// freePorts reserves n loopback UDP ports and releases them for the test
func freePorts(t *testing.T, n int) []int {
	t.Helper()
	ports := make([]int, 0, n)
	conns := make([]*net.UDPConn, 0, n)
	for i := 0; i < n; i++ {
		c, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		if err != nil {
			t.Fatalf("reserve port: %v", err)
		}
		conns = append(conns, c)
		ports = append(ports, c.LocalAddr().(*net.UDPAddr).Port)
	}
	for _, c := range conns {
		c.Close()
	}
	return ports
}

func send(t *testing.T, port int, data []byte) {
	t.Helper()
	c, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if _, err := c.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// sendEvery repeats data to port until the test ends
func sendEvery(t *testing.T, port int, data []byte) {
	t.Helper()
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })

	c, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	go func() {
		defer c.Close()
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.Write(data)
			}
		}
	}()
}

func newTestDispatcher(ports []int) *Dispatcher {
	return NewDispatcher(WithHost("127.0.0.1"), WithPorts(ports...))
}

func TestListenDeliversMatchingBeacons(t *testing.T) {
	ports := freePorts(t, 2)
	d := newTestDispatcher(ports)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := d.Listen(ctx, Key("boiler"))
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ready := <-msgs
	if ready.Kind != MessageReady || len(ready.Addrs) != 2 {
		t.Fatalf("first message = %v, want ready on 2 sockets", ready)
	}

	send(t, ports[0], beacon([3]byte{0x01, 0x02, 0x03}, "Kettle"))
	send(t, ports[0], make([]byte, 100))
	send(t, ports[1], beacon([3]byte{0x0a, 0x1b, 0x2c}, "Boiler"))

	select {
	case msg := <-msgs:
		if msg.Kind != MessageBeacon {
			t.Fatalf("Kind = %s, want message", msg.Kind)
		}
		if msg.Beacon.Name != "Boiler" || msg.Port != ports[1] {
			t.Errorf("message = %v", msg)
		}
		if msg.Beacon.Family != protocol.V4 || msg.Beacon.Switch == nil || msg.Beacon.Switch.Power != protocol.On {
			t.Errorf("beacon = %+v", msg.Beacon)
		}
		if msg.Beacon.IP != "127.0.0.1" {
			t.Errorf("IP = %q, want datagram source", msg.Beacon.IP)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no beacon delivered")
	}

	cancel()
	for msg := range msgs {
		if msg.Beacon != nil && msg.Beacon.Name != "Boiler" {
			t.Errorf("unfiltered beacon delivered: %v", msg)
		}
	}
}

func TestDiscoverFindsDevice(t *testing.T) {
	ports := freePorts(t, 4)
	d := newTestDispatcher(ports)
	sendEvery(t, ports[2], beacon([3]byte{0x0a, 0x1b, 0x2c}, "Boiler"))

	desc, err := d.Discover(context.Background(), Filter{ID: "0A1B2C"}, 2*time.Second)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if desc.ID != (protocol.DeviceID{0x0a, 0x1b, 0x2c}) || desc.Family != protocol.V4 {
		t.Errorf("Discover() = %v", desc)
	}
	if desc.TCPPort() != protocol.LegacyTCPPort {
		t.Errorf("TCPPort() = %d", desc.TCPPort())
	}
}

func TestDiscoverTimeoutReleasesSockets(t *testing.T) {
	ports := freePorts(t, 4)
	d := newTestDispatcher(ports)

	start := time.Now()
	_, err := d.Discover(context.Background(), Key("nothing"), 100*time.Millisecond)
	if !errors.Is(err, ErrDiscoveryTimeout) {
		t.Fatalf("error = %v, want ErrDiscoveryTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Discover() took %s", elapsed)
	}

	// every port can be bound again
	for _, port := range ports {
		c, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
		if err != nil {
			t.Errorf("port %d still bound: %v", port, err)
			continue
		}
		c.Close()
	}
}

func TestDiscoverCancelled(t *testing.T) {
	d := newTestDispatcher(freePorts(t, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Discover(ctx, Filter{}, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestListenBindFailure(t *testing.T) {
	ports := freePorts(t, 2)
	busy, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: ports[1]})
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	d := newTestDispatcher(ports)
	if _, err := d.Listen(context.Background(), Filter{}); err == nil {
		t.Fatal("Listen() = nil error with a busy port")
	}

	// the first port was released
	c, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: ports[0]})
	if err != nil {
		t.Fatalf("port %d still bound: %v", ports[0], err)
	}
	c.Close()
}

func TestScanDeduplicates(t *testing.T) {
	ports := freePorts(t, 2)
	d := newTestDispatcher(ports)
	sendEvery(t, ports[0], beacon([3]byte{0x01, 0x02, 0x03}, "Kettle"))
	sendEvery(t, ports[1], beacon([3]byte{0x0a, 0x1b, 0x2c}, "Boiler"))

	devices, err := d.Scan(context.Background(), 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Scan() = %v, want 2 devices", devices)
	}
}

func TestCloseStopsListeners(t *testing.T) {
	d := newTestDispatcher(freePorts(t, 2))
	msgs, err := d.Listen(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	d.Close()

	done := make(chan struct{})
	go func() {
		for range msgs {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Listen channel not closed after Close")
	}
}

func TestFilterMatch(t *testing.T) {
	b := &protocol.Beacon{ID: protocol.DeviceID{0x0a, 0x1b, 0x2c}, Name: "Boiler", IP: "192.168.1.20"}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"zero matches all", Filter{}, true},
		{"id", Filter{ID: "0a1b2c"}, true},
		{"id upper case", Filter{ID: "0A1B2C"}, true},
		{"name", Filter{Name: "boiler"}, true},
		{"ip", Filter{IP: "192.168.1.20"}, true},
		{"key on ip", Key("192.168.1.20"), true},
		{"key on name", Key("Boiler"), true},
		{"other ip", Filter{IP: "192.168.1.21"}, false},
		{"other key", Key("kettle"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(b); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}

	if (Filter{}).Match(nil) {
		t.Error("Match(nil) = true")
	}
}
