package device

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/protocol"
	"github.com/muurk/switcher/internal/transport"
)

// SessionState is the login state of a controller
type SessionState int

const (
	NoSession SessionState = iota
	LoggingIn
	Authenticated
)

// String returns the name of the session state
func (s SessionState) String() string {
	switch s {
	case NoSession:
		return "no-session"
	case LoggingIn:
		return "logging-in"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("SessionState(%d)", s)
	}
}

// SessionState returns the current login state
func (c *Controller) SessionState() SessionState { return c.state }

// Login returns the cached session token, or performs the family's login
// exchange to obtain one. On failure an ErrorEvent is emitted and a
// *LoginError returned.
func (c *Controller) Login(ctx context.Context) (protocol.SessionToken, error) {
	if c.state == Authenticated {
		return c.token, nil
	}

	c.state = LoggingIn
	f := c.cfg.Frame(c.desc.ID, protocol.SessionToken{}, c.now())

	var p *protocol.Packet
	if c.desc.Family.NewGeneration() {
		p = protocol.NewLoginV2Command(f)
	} else {
		p = protocol.NewLoginCommand(f)
	}

	logging.Debug("Logging in", c.fields()...)

	resp, err := c.send(ctx, p)
	if err == nil {
		var token protocol.SessionToken
		if token, err = protocol.LoginToken(resp); err == nil {
			c.token = token
			c.state = Authenticated
			logging.Debug("Logged in", append(c.fields(), zap.String("session", token.String()))...)
			return token, nil
		}
	}

	c.Invalidate()
	lerr := &LoginError{DeviceID: c.desc.ID, Addr: c.desc.Addr(), Err: err}
	logging.Error("Login failed", append(c.fields(), zap.Error(err))...)
	c.emit(&ErrorEvent{Err: lerr})
	return protocol.SessionToken{}, lerr
}

// Invalidate discards the cached session token. The next command logs in
// again.
func (c *Controller) Invalidate() {
	c.token = protocol.SessionToken{}
	c.state = NoSession
}

// send builds, signs and transmits p. Connection errors and cancellation
// invalidate the session.
func (c *Controller) send(ctx context.Context, p *protocol.Packet) ([]byte, error) {
	resp, err := c.sender.Send(ctx, protocol.Build(p, c.cfg.Key))
	if err != nil {
		if transport.IsConnectionError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.Invalidate()
		}
		return nil, err
	}
	return resp, nil
}
