package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// ErrorType represents the category of a connection failure
type ErrorType int

const (
	// ErrTypeNetwork indicates a generic socket error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the dial or a socket operation timed out
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing listens on the command port
	ErrTypeConnectionRefused
	// ErrTypeUnreachable indicates the host or network is unreachable
	ErrTypeUnreachable
	// ErrTypeClosed indicates the device closed the connection
	ErrTypeClosed
	// ErrTypeFraming indicates the response stream is not a valid packet
	ErrTypeFraming
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeUnreachable:
		return "Unreachable"
	case ErrTypeClosed:
		return "Connection Closed"
	case ErrTypeFraming:
		return "Framing Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ConnectionError is returned by Session when the device cannot be reached
// or the socket fails. The session drops its connection before returning it,
// so the next Send reconnects.
type ConnectionError struct {
	Type      ErrorType
	IP        string
	Port      int
	Message   string
	Err       error
	Retryable bool
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("connection error: failed to reach switcher at %s:%d: %s", e.IP, e.Port, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a socket error to a ConnectionError
func ClassifyNetworkError(err error, ip string, port int) *ConnectionError {
	if err == nil {
		return nil
	}

	ce := &ConnectionError{
		Type:      ErrTypeNetwork,
		IP:        ip,
		Port:      port,
		Message:   "socket error",
		Err:       err,
		Retryable: true,
	}

	if os.IsTimeout(err) {
		ce.Type = ErrTypeTimeout
		ce.Message = "timed out"
		return ce
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		ce.Type = ErrTypeClosed
		ce.Message = "connection closed"
		return ce
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			ce.Type = ErrTypeConnectionRefused
			ce.Message = "connection refused, make sure it is turned on and available"
			ce.Retryable = false
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			ce.Type = ErrTypeUnreachable
			ce.Message = "host unreachable"
			ce.Retryable = false
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			ce.Type = ErrTypeUnreachable
			ce.Message = "network unreachable"
			ce.Retryable = false
		case errors.Is(opErr.Err, syscall.ECONNRESET):
			ce.Type = ErrTypeClosed
			ce.Message = "connection reset"
		}
	}
	return ce
}

func newFramingError(ip string, port int, msg string) *ConnectionError {
	return &ConnectionError{
		Type:      ErrTypeFraming,
		IP:        ip,
		Port:      port,
		Message:   msg,
		Retryable: true,
	}
}

// IsConnectionError reports whether err carries a ConnectionError
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsRetryable reports whether err is a ConnectionError worth retrying.
// Refused and unreachable hosts are not: they need the user to act first.
func IsRetryable(err error) bool {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// Troubleshooting returns user-facing hints for a connection failure, or
// nil when err is not a ConnectionError.
func Troubleshooting(err error) []string {
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		return nil
	}

	switch ce.Type {
	case ErrTypeTimeout:
		return []string{
			"Check that the device is powered on",
			"Verify the device address with 'switcher discover'",
			"Try again with a longer --timeout",
		}
	case ErrTypeConnectionRefused:
		return []string{
			"The device is up but nothing listens on the command port",
			"Check the --family flag, it selects port 9957 or 10000",
			"Power cycle the device if it persists",
		}
	case ErrTypeUnreachable:
		return []string{
			"Check that you're on the same network as the device",
			"The device may have a new address, run 'switcher discover'",
			"Try pinging the device: ping " + ce.IP,
		}
	case ErrTypeClosed, ErrTypeFraming:
		return []string{
			"The device dropped the session, try again",
			"Another client may be talking to the device",
		}
	default:
		return []string{
			"Check your network connection",
			"Verify the device is powered on",
		}
	}
}
