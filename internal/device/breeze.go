package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/breeze"
	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/protocol"
)

// ErrNoProvider is returned by breeze operations when the controller was
// built without a capability provider.
var ErrNoProvider = errors.New("no IR capability provider configured")

// Capabilities returns the loaded capability set, or nil before
// LoadCapabilities succeeded.
func (c *Controller) Capabilities() *breeze.CapabilitySet { return c.caps }

// LoadCapabilities fetches the capability set of the given remote. The set
// is loaded once per controller; the first successful load emits a
// CapabilitiesEvent.
func (c *Controller) LoadCapabilities(ctx context.Context, remoteID string) (*breeze.CapabilitySet, error) {
	if err := c.requireState("load capabilities", protocol.StateBreeze); err != nil {
		return nil, err
	}
	if c.caps != nil && c.caps.RemoteID == remoteID {
		return c.caps, nil
	}
	if c.provider == nil {
		return nil, ErrNoProvider
	}

	set, err := c.provider.CapabilitySet(ctx, remoteID)
	if err != nil {
		return nil, fmt.Errorf("capability set for %s: %w", remoteID, err)
	}

	first := c.caps == nil
	c.caps = set
	if first {
		c.emit(&CapabilitiesEvent{Capabilities: breeze.DeriveCapabilities(set)})
	}
	logging.Debug("Loaded IR capability set", append(c.fields(),
		zap.String("remote", remoteID),
		zap.Int("waves", len(set.Waves)),
	)...)
	return set, nil
}

// SetBreezeState drives the AC towards target. The current power is read
// from the device first. A capability set already loaded, for instance
// for a remote chosen by the caller, is used as is; otherwise the set of
// the remote the device reports is loaded. A target that resolves to no
// IR command is logged and skipped, and nil is returned.
func (c *Controller) SetBreezeState(ctx context.Context, target breeze.State) error {
	if err := c.requireState("set breeze state", protocol.StateBreeze); err != nil {
		return err
	}

	st, err := c.Status(ctx)
	if err != nil {
		return err
	}
	current := st.Breeze

	caps := c.caps
	if caps == nil {
		if caps, err = c.LoadCapabilities(ctx, current.Remote); err != nil {
			return err
		}
	}

	cmd, err := breeze.Resolve(target, caps, current.Power)
	switch {
	case errors.Is(err, breeze.ErrAlreadyOff):
		logging.Debug("AC already off, nothing to send", c.fields()...)
		return nil
	case errors.Is(err, breeze.ErrNoCommand):
		logging.Warn("No IR command for requested state", append(c.fields(),
			zap.Stringer("state", target),
			zap.Error(err),
		)...)
		return nil
	case err != nil:
		return err
	}

	if err := c.sendIR(ctx, cmd); err != nil {
		return err
	}

	if !caps.SeparatedSwing || target.Power == protocol.Off {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.swingDelay):
	}

	swing, err := breeze.SwingCommand(caps, target.Swing)
	if err != nil {
		logging.Warn("No IR command for swing", append(c.fields(), zap.Error(err))...)
		return nil
	}
	return c.sendIR(ctx, swing)
}

// SendCommand sends the wave registered under key, bypassing state
// resolution. The capability set must have been loaded.
func (c *Controller) SendCommand(ctx context.Context, key string) error {
	if err := c.requireState("send IR command", protocol.StateBreeze); err != nil {
		return err
	}
	if c.caps == nil {
		return fmt.Errorf("send %q: capability set not loaded", key)
	}
	w, ok := c.caps.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q on remote %s", breeze.ErrNoCommand, key, c.caps.RemoteID)
	}
	return c.sendIR(ctx, breeze.Command{Key: key, Wave: w})
}

func (c *Controller) sendIR(ctx context.Context, cmd breeze.Command) error {
	_, err := c.exchange(ctx, func(f protocol.Frame) (*protocol.Packet, error) {
		return protocol.NewBreezeCommand(f, cmd.Payload()), nil
	}, true)
	if err != nil {
		return err
	}
	logging.Info("IR command sent", append(c.fields(), zap.Stringer("command", cmd))...)
	c.emit(&BreezeChangedEvent{Key: cmd.Key})
	return nil
}
