package device

import (
	"errors"
	"fmt"

	"github.com/muurk/switcher/internal/protocol"
)

// ErrUnsupported is returned when an operation does not apply to the
// device's family.
var ErrUnsupported = errors.New("operation not supported by device family")

// LoginError is returned (and emitted as an ErrorEvent) when no session
// token could be obtained. There is no automatic retry.
type LoginError struct {
	DeviceID protocol.DeviceID
	Addr     string
	Err      error
}

// Error implements the error interface
func (e *LoginError) Error() string {
	return fmt.Sprintf("login to %s (%s) failed: %v", e.DeviceID, e.Addr, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *LoginError) Unwrap() error {
	return e.Err
}

func unsupported(op string, f protocol.Family) error {
	return fmt.Errorf("%s on %s: %w", op, f, ErrUnsupported)
}
