package device

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/protocol"
	"github.com/muurk/switcher/internal/transport"
)

// exchange logs in if needed, builds the packet with the current session
// and sends it. oneShot commands drop the session token as soon as the
// packet is built; those devices reject a reused token.
func (c *Controller) exchange(ctx context.Context, build func(protocol.Frame) (*protocol.Packet, error), oneShot bool) ([]byte, error) {
	token, err := c.Login(ctx)
	if err != nil {
		return nil, err
	}

	p, err := build(c.cfg.Frame(c.desc.ID, token, c.now()))
	if err != nil {
		return nil, err
	}
	if oneShot {
		c.Invalidate()
	}

	resp, err := c.send(ctx, p)
	if err != nil {
		if transport.IsConnectionError(err) {
			c.emit(&ErrorEvent{Err: err})
		}
		logging.Warn("Command failed", append(c.fields(),
			zap.String("command", fmt.Sprintf("%x", p.Command)),
			zap.Error(err),
		)...)
		return nil, err
	}
	return resp, nil
}

func (c *Controller) requireState(op string, kind protocol.StateKind) error {
	if c.desc.Family.StateKind() != kind {
		return unsupported(op, c.desc.Family)
	}
	return nil
}

// TurnOn switches the relay on. minutes > 0 arms the auto-off timer.
func (c *Controller) TurnOn(ctx context.Context, minutes int) error {
	if err := c.requireState("turn on", protocol.StateSwitch); err != nil {
		return err
	}
	if minutes < 0 {
		return fmt.Errorf("invalid timer %d minutes", minutes)
	}
	return c.power(ctx, true, minutes)
}

// TurnOff switches the relay off.
func (c *Controller) TurnOff(ctx context.Context) error {
	if err := c.requireState("turn off", protocol.StateSwitch); err != nil {
		return err
	}
	return c.power(ctx, false, 0)
}

func (c *Controller) power(ctx context.Context, on bool, minutes int) error {
	_, err := c.exchange(ctx, func(f protocol.Frame) (*protocol.Packet, error) {
		return protocol.NewPowerCommand(f, on, minutes), nil
	}, false)
	if err != nil {
		return err
	}

	ev := &StateChangedEvent{Power: protocol.Off}
	if on {
		ev.Power = protocol.On
		ev.Minutes = minutes
	}
	logging.Info("Power changed", append(c.fields(), zap.Stringer("power", ev.Power), zap.Int("minutes", ev.Minutes))...)
	c.emit(ev)
	return nil
}

// SetDefaultShutdown sets the auto-shutdown applied whenever the relay is
// switched on. seconds is clamped to the device's accepted range and the
// clamped value is returned.
func (c *Controller) SetDefaultShutdown(ctx context.Context, seconds int) (int, error) {
	if err := c.requireState("set default shutdown", protocol.StateSwitch); err != nil {
		return 0, err
	}
	clamped := protocol.ClampShutdown(seconds)
	if clamped != seconds {
		logging.Debug("Auto-shutdown clamped", zap.Int("requested", seconds), zap.Int("seconds", clamped))
	}

	_, err := c.exchange(ctx, func(f protocol.Frame) (*protocol.Packet, error) {
		return protocol.NewDefaultShutdownCommand(f, clamped), nil
	}, false)
	if err != nil {
		return 0, err
	}
	c.emit(&DurationChangedEvent{Seconds: clamped})
	return clamped, nil
}

// Status queries the live state of the device. The populated field of the
// result depends on the family.
func (c *Controller) Status(ctx context.Context) (protocol.Status, error) {
	newGen := c.desc.Family.NewGeneration()
	resp, err := c.exchange(ctx, func(f protocol.Frame) (*protocol.Packet, error) {
		return protocol.NewStatusCommand(f, newGen), nil
	}, false)
	if err != nil {
		return protocol.Status{}, err
	}

	st, err := protocol.DecodeStatus(c.desc.Family, resp)
	if err != nil {
		logging.Warn("Malformed status response", append(c.fields(), zap.Error(err))...)
		return protocol.Status{}, err
	}
	return st, nil
}

func (c *Controller) checkGang(gang int) error {
	if gang < 0 || gang >= c.desc.Family.Channels() {
		return fmt.Errorf("channel %d out of range for %s (%d channels)", gang, c.desc.Family, c.desc.Family.Channels())
	}
	return nil
}

// SetPosition moves a shutter channel to position (0 closed, 100 open).
func (c *Controller) SetPosition(ctx context.Context, position, gang int) error {
	if err := c.requireState("set position", protocol.StateShutter); err != nil {
		return err
	}
	if err := c.checkGang(gang); err != nil {
		return err
	}
	if position < 0 || position > 100 {
		return fmt.Errorf("position %d out of range 0-100", position)
	}

	_, err := c.exchange(ctx, func(f protocol.Frame) (*protocol.Packet, error) {
		return protocol.NewPositionCommand(f, gang, position)
	}, true)
	if err != nil {
		return err
	}
	c.emit(&PositionChangedEvent{Position: position, Gang: gang})
	return nil
}

// Stop halts a moving shutter channel.
func (c *Controller) Stop(ctx context.Context, gang int) error {
	if err := c.requireState("stop", protocol.StateShutter); err != nil {
		return err
	}
	if err := c.checkGang(gang); err != nil {
		return err
	}
	_, err := c.exchange(ctx, func(f protocol.Frame) (*protocol.Packet, error) {
		return protocol.NewStopCommand(f, gang), nil
	}, true)
	return err
}

// SetChildLock enables or disables the physical buttons of a shutter
// channel.
func (c *Controller) SetChildLock(ctx context.Context, gang int, locked bool) error {
	if err := c.requireState("child lock", protocol.StateShutter); err != nil {
		return err
	}
	if err := c.checkGang(gang); err != nil {
		return err
	}
	_, err := c.exchange(ctx, func(f protocol.Frame) (*protocol.Packet, error) {
		return protocol.NewChildLockCommand(f, gang, locked), nil
	}, true)
	return err
}

// SetLight switches one light circuit of a runner with lights.
func (c *Controller) SetLight(ctx context.Context, index int, on bool) error {
	lights := c.desc.Family.Lights()
	if lights == 0 {
		return unsupported("set light", c.desc.Family)
	}
	if index < 0 || index >= lights {
		return fmt.Errorf("light %d out of range for %s (%d lights)", index, c.desc.Family, lights)
	}
	_, err := c.exchange(ctx, func(f protocol.Frame) (*protocol.Packet, error) {
		return protocol.NewLightCommand(f, index, on), nil
	}, true)
	return err
}
