// Package device drives a single Switcher device over its TCP command port.
//
// A Controller wraps a transport session, the login handshake and the
// family-specific command set. Results of state-changing commands are
// published as typed events on a buffered channel.
//
// # Session Lifecycle
//
// The first command logs in and caches the returned session token:
//
//	NoSession -> LoggingIn -> Authenticated
//
// Switch-class families (power plug, v2, v3, v4, mini) use the legacy login
// on port 9957. Runners, S11/S12 and breeze use the v2 login on port 10000
// and reject a token that was used once for a control command, so shutter,
// light and IR commands drop the token right after the packet is built.
// A connection error drops both the socket and the token.
//
// # Events
//
// Events are delivered without blocking. When the channel is full the event
// is dropped and a warning logged, so a slow consumer never stalls the
// command path. Close closes the channel.
//
// # Usage Example
//
//	desc := protocol.Descriptor{ID: id, IP: "192.168.1.20", Family: protocol.V4}
//	ctrl := device.New(desc)
//	defer ctrl.Close()
//
//	if err := ctrl.TurnOn(ctx, 30); err != nil {
//	    return err
//	}
//	st, err := ctrl.Status(ctx)
//
// # Breeze
//
// Breeze controllers need a breeze.CapabilityProvider (see WithCapabilityProvider).
// SetBreezeState reads the current state, resolves the target against the
// remote's IR table and sends one command, plus a delayed swing command on
// remotes with separated swing.
//
// # Thread Safety
//
// A Controller is not safe for concurrent commands: one request may be in
// flight at a time and callers must serialize. Observe, Watch and Events
// may be used from other goroutines.
package device
