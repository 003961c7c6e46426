// Package protocol implements the Switcher device binary control protocol.
//
// This package handles construction, signing, and parsing of the fixed-layout
// packets exchanged with Switcher power relays, water-heater timers, shutter
// runners and Breeze AC controllers, plus decoding of the UDP beacons those
// devices broadcast.
//
// # Packet Layout
//
// Every packet starts with a 40-byte header:
//
//	[0-1]   fe f0          Magic
//	[2-3]   length         Total packet length including checksums (LE)
//	[4-5]   version        02 32 (legacy) or 03 05 (v2)
//	[6-7]   command        a1 00 login, a6 00 login v2, 01 02 control, 01 03 status
//	[8-11]  session        Session token returned by login
//	[12-23] reserved       Per-command marker bytes
//	[24-27] timestamp      Unix seconds (LE)
//	[28-37] zeros
//	[38-39] f0 fe
//
// followed by one of three tails (see Layout) and the command payload.
// Two CRC16 values are appended: the first over the packet, the second over
// the first checksum and the shared key. Devices silently drop packets whose
// signature does not match.
//
// # Device Families
//
// Family is a closed set of known device models plus an Unknown variant that
// keeps the raw model code. The family decides the TCP port, the login
// variant, and which offset table applies to beacons and status responses.
//
// # Usage Example - Construction
//
//	cfg := protocol.DefaultConfig()
//	frame := cfg.Frame(deviceID, token, time.Now())
//	pkt := protocol.NewPowerCommand(frame, true, 30)
//	data := protocol.Build(pkt, cfg.Key)
//
// # Usage Example - Beacons
//
//	if cfg.IsValidBeacon(datagram) {
//	    beacon, err := protocol.DecodeBeacon(datagram, sourceIP)
//	    ...
//	}
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package protocol
