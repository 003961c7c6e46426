// Package discovery finds Switcher devices by listening for their UDP
// broadcast beacons.
//
// Every device announces itself a few times per second on one of four UDP
// ports, depending on its generation:
//
//	20002  type 1 (power plugs, v2, v3, v4, mini)
//	20003  type 2 (runners, breeze)
//	10002  type 1, newer firmware
//	10003  type 2, newer firmware
//
// Nothing in a beacon says which layout it uses, so the Dispatcher binds all
// four ports at once and lets protocol.DecodeBeacon pick the family from the
// product bytes.
//
// # Discovery Process
//
//  1. Bind every broadcast port, one reader goroutine per socket
//  2. Drop datagrams with the wrong magic or an unknown length
//  3. Decode the rest and apply the Filter (id, name or source IP)
//  4. Discover returns the first match; Listen streams every match
//
// # Usage Example
//
//	d := discovery.NewDispatcher()
//	desc, err := d.Discover(ctx, discovery.Key("Boiler"), 10*time.Second)
//	if errors.Is(err, discovery.ErrDiscoveryTimeout) {
//	    ...
//	}
//
//	msgs, err := d.Listen(ctx, discovery.Filter{})
//	for msg := range msgs {
//	    fmt.Println(msg)
//	}
//
// # Network Requirements
//
// - Devices must be on the same broadcast domain
// - Firewall must allow inbound UDP on the four ports above
// - Only one process can bind the ports at a time
//
// # Thread Safety
//
// A Dispatcher may run several Listen sessions, but each binds the same
// ports, so in practice only one is active at a time. Close stops all of
// them.
package discovery
