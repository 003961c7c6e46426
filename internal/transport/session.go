package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/protocol"
)

const (
	// DefaultDialTimeout bounds the TCP connect only. Requests themselves
	// have no deadline; cancel the context to abandon one.
	DefaultDialTimeout = 5 * time.Second

	frameHeaderSize = 4 // magic + length
)

// Session owns the TCP connection to one device.
//
// Session is not safe for concurrent use: a second Send before the first
// returns is unsupported. Callers must serialize requests.
type Session struct {
	ip          string
	port        int
	dialTimeout time.Duration

	conn net.Conn
}

// Option configures a Session
type Option func(*Session)

// WithDialTimeout overrides DefaultDialTimeout
func WithDialTimeout(d time.Duration) Option {
	return func(s *Session) { s.dialTimeout = d }
}

// NewSession creates a session for ip:port. No connection is opened until
// the first Send.
func NewSession(ip string, port int, opts ...Option) *Session {
	s := &Session{
		ip:          ip,
		port:        port,
		dialTimeout: DefaultDialTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the host:port of the device
func (s *Session) Addr() string {
	return net.JoinHostPort(s.ip, strconv.Itoa(s.port))
}

func (s *Session) connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: s.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.Addr())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ClassifyNetworkError(err, s.ip, s.port)
	}
	s.conn = conn
	logging.LogConnection(s.Addr(), "connected")
	return nil
}

// Send writes one packet and waits for exactly one response frame. On any
// socket error the connection is dropped and a *ConnectionError returned.
// Cancelling ctx closes the socket to unblock the pending read.
func (s *Session) Send(ctx context.Context, packet []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	conn := s.conn
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	resp, err := s.roundTrip(conn, packet)
	if !stop() {
		// the context fired while the request was in flight
		s.drop()
		return nil, fmt.Errorf("send to %s: %w", s.Addr(), ctx.Err())
	}
	if err != nil {
		s.drop()
		return nil, err
	}
	return resp, nil
}

func (s *Session) roundTrip(conn net.Conn, packet []byte) ([]byte, error) {
	logging.LogPacket("sent", s.Addr(), packet)
	if _, err := conn.Write(packet); err != nil {
		return nil, ClassifyNetworkError(err, s.ip, s.port)
	}

	resp, err := s.readFrame(conn)
	if err != nil {
		return nil, err
	}
	logging.LogPacket("received", s.Addr(), resp)
	return resp, nil
}

// readFrame reads one response using the length field of its header
func (s *Session) readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, ClassifyNetworkError(err, s.ip, s.port)
	}
	if header[0] != protocol.Magic[0] || header[1] != protocol.Magic[1] {
		return nil, newFramingError(s.ip, s.port, fmt.Sprintf("bad magic %02x%02x", header[0], header[1]))
	}

	length := int(binary.LittleEndian.Uint16(header[2:]))
	if length < frameHeaderSize || length > protocol.MaxPacketSize {
		return nil, newFramingError(s.ip, s.port, fmt.Sprintf("invalid frame length %d", length))
	}

	frame := make([]byte, length)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[frameHeaderSize:]); err != nil {
		return nil, ClassifyNetworkError(err, s.ip, s.port)
	}
	return frame, nil
}

func (s *Session) drop() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		logging.Debug("Close after failure", zap.String("remote_addr", s.Addr()), zap.Error(err))
	}
	s.conn = nil
	logging.LogConnection(s.Addr(), "dropped")
}

// Close closes the connection, if any. The session stays usable; the next
// Send reconnects.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	logging.LogConnection(s.Addr(), "closed")
	return err
}
