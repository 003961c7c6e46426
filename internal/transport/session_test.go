package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// frame builds a minimal response frame with the given body after the header
func frame(body ...byte) []byte {
	out := []byte{0xfe, 0xf0, 0, 0}
	out = append(out, body...)
	binary.LittleEndian.PutUint16(out[2:], uint16(len(out)))
	return out
}

// fakeDevice accepts connections on a loopback port and answers each request
// with handler's reply. It counts accepted connections.
type fakeDevice struct {
	ln       net.Listener
	accepted chan struct{}
}

func newFakeDevice(t *testing.T, handler func(req []byte) []byte) *fakeDevice {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	d := &fakeDevice{ln: ln, accepted: make(chan struct{}, 16)}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			d.accepted <- struct{}{}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if err != nil {
						return
					}
					reply := handler(buf[:n])
					if reply == nil {
						return
					}
					if _, err := c.Write(reply); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return d
}

func (d *fakeDevice) port() int {
	return d.ln.Addr().(*net.TCPAddr).Port
}

func TestSendReadsOneFrame(t *testing.T) {
	want := frame(0x01, 0x02, 0x03)
	dev := newFakeDevice(t, func(req []byte) []byte { return want })

	s := NewSession("127.0.0.1", dev.port())
	defer s.Close()

	if s.conn != nil {
		t.Error("connection open before first Send")
	}

	for i := 0; i < 3; i++ {
		got, err := s.Send(context.Background(), []byte{0xfe, 0xf0})
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Send() = %x, want %x", got, want)
		}
	}

	if n := len(dev.accepted); n != 1 {
		t.Errorf("accepted %d connections, want 1", n)
	}
}

func TestSendSplitFrame(t *testing.T) {
	// the device writes the frame in two segments
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	want := frame(bytes.Repeat([]byte{0xaa}, 60)...)

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 64)
		if _, err := c.Read(buf); err != nil {
			return
		}
		c.Write(want[:10])
		time.Sleep(20 * time.Millisecond)
		c.Write(want[10:])
		io.Copy(io.Discard, c)
	}()

	s := NewSession("127.0.0.1", ln.Addr().(*net.TCPAddr).Port)
	defer s.Close()
	got, err := s.Send(context.Background(), []byte{0x00})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Send() = %x, want %x", got, want)
	}
}

func TestSendConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	s := NewSession("127.0.0.1", port)
	_, err = s.Send(context.Background(), []byte{0x00})

	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *ConnectionError", err)
	}
	if ce.IP != "127.0.0.1" || ce.Port != port {
		t.Errorf("ConnectionError addr = %s:%d, want 127.0.0.1:%d", ce.IP, ce.Port, port)
	}
	if ce.Type != ErrTypeConnectionRefused {
		t.Errorf("Type = %s, want %s", ce.Type, ErrTypeConnectionRefused)
	}
	if IsRetryable(err) {
		t.Error("IsRetryable() = true for a refused connection")
	}
	if s.conn != nil {
		t.Error("connection kept after failure")
	}
}

func TestSendDeviceCloses(t *testing.T) {
	dev := newFakeDevice(t, func(req []byte) []byte { return nil })

	s := NewSession("127.0.0.1", dev.port())
	_, err := s.Send(context.Background(), []byte{0x00})
	if !IsConnectionError(err) {
		t.Fatalf("error = %v, want ConnectionError", err)
	}
	if s.conn != nil {
		t.Error("connection kept after close")
	}
}

func TestSendBadMagic(t *testing.T) {
	dev := newFakeDevice(t, func(req []byte) []byte { return []byte{0x00, 0x01, 0x08, 0x00} })

	s := NewSession("127.0.0.1", dev.port())
	_, err := s.Send(context.Background(), []byte{0x00})

	var ce *ConnectionError
	if !errors.As(err, &ce) || ce.Type != ErrTypeFraming {
		t.Fatalf("error = %v, want framing ConnectionError", err)
	}
}

func TestSendReconnectsAfterFailure(t *testing.T) {
	var calls atomic.Int32
	dev := newFakeDevice(t, func(req []byte) []byte {
		if calls.Add(1) == 1 {
			return nil
		}
		return frame(0x42)
	})

	s := NewSession("127.0.0.1", dev.port())
	defer s.Close()

	if _, err := s.Send(context.Background(), []byte{0x00}); err == nil {
		t.Fatal("first Send() = nil error, want failure")
	}
	got, err := s.Send(context.Background(), []byte{0x00})
	if err != nil {
		t.Fatalf("second Send() error = %v", err)
	}
	if !bytes.Equal(got, frame(0x42)) {
		t.Errorf("second Send() = %x", got)
	}
}

func TestSendContextCancel(t *testing.T) {
	// the device never answers
	dev := newFakeDevice(t, func(req []byte) []byte { return []byte{} })

	s := NewSession("127.0.0.1", dev.port())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Send(ctx, []byte{0x00})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send returned after %v, want prompt return", elapsed)
	}
	if s.conn != nil {
		t.Error("connection kept after cancellation")
	}
}

func TestClassifyNetworkError(t *testing.T) {
	if ClassifyNetworkError(nil, "1.2.3.4", 1) != nil {
		t.Error("ClassifyNetworkError(nil) != nil")
	}

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"eof", io.EOF, ErrTypeClosed},
		{"unexpected eof", io.ErrUnexpectedEOF, ErrTypeClosed},
		{"generic", errors.New("boom"), ErrTypeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyNetworkError(tt.err, "1.2.3.4", 9957)
			if got.Type != tt.want {
				t.Errorf("Type = %s, want %s", got.Type, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("ConnectionError does not wrap the cause")
			}
			if !IsRetryable(got) {
				t.Error("IsRetryable() = false")
			}
		})
	}
}

func TestTroubleshooting(t *testing.T) {
	if hints := Troubleshooting(errors.New("boom")); hints != nil {
		t.Errorf("Troubleshooting(plain error) = %v, want nil", hints)
	}

	for _, typ := range []ErrorType{ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeUnreachable, ErrTypeClosed, ErrTypeFraming} {
		err := fmt.Errorf("status: %w", &ConnectionError{Type: typ, IP: "1.2.3.4", Port: 9957})
		if hints := Troubleshooting(err); len(hints) == 0 {
			t.Errorf("Troubleshooting(%s) = no hints", typ)
		}
	}

	hints := Troubleshooting(&ConnectionError{Type: ErrTypeUnreachable, IP: "1.2.3.4"})
	if !strings.Contains(strings.Join(hints, "\n"), "ping 1.2.3.4") {
		t.Errorf("unreachable hints = %v", hints)
	}
}
