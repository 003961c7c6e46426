package protocol

import (
	"time"
)

// Wire constants
const (
	// TCP command ports
	LegacyTCPPort = 9957
	TCPPort       = 10000

	// UDP broadcast ports. Beacon layouts changed across generations without
	// a discriminator, so all four must be bound for discovery.
	BroadcastPortType1    = 20002
	BroadcastPortType2    = 20003
	BroadcastPortType1New = 10002
	BroadcastPortType2New = 10003

	// SharedKey is the static signing key, identical on every device.
	SharedKey = "00000000000000000000000000000000"

	// MaxPacketSize bounds the length field accepted from a device.
	MaxPacketSize = 4096
)

// Magic is the first two bytes of every packet and beacon.
var Magic = [2]byte{0xfe, 0xf0}

// Config holds the protocol parameters shared by every device. It is built
// once at startup by DefaultConfig and passed by value.
type Config struct {
	// Key signs every outbound packet (checksum2)
	Key []byte

	// PhoneID and Password fill the authenticated tail of control packets
	PhoneID  [2]byte
	Password [4]byte

	// BroadcastPorts are bound for discovery and listening
	BroadcastPorts []int

	// BeaconLengths are the datagram sizes produced by the known generations
	BeaconLengths []int
}

// DefaultConfig returns the protocol configuration used by the stock firmware.
func DefaultConfig() Config {
	return Config{
		Key:      []byte(SharedKey),
		PhoneID:  [2]byte{0x00, 0x00},
		Password: [4]byte{0x00, 0x00, 0x00, 0x00},
		BroadcastPorts: []int{
			BroadcastPortType1,
			BroadcastPortType2,
			BroadcastPortType1New,
			BroadcastPortType2New,
		},
		BeaconLengths: []int{159, 165, 168},
	}
}

// Frame returns the addressing fields for a packet to the given device.
func (c Config) Frame(id DeviceID, session SessionToken, now time.Time) Frame {
	return Frame{
		DeviceID:  id,
		Session:   session,
		Timestamp: uint32(now.Unix()),
		PhoneID:   c.PhoneID,
		Password:  c.Password,
	}
}

// IsValidBeacon reports whether data looks like a Switcher broadcast: the
// magic matches and the length is one of the known beacon sizes.
func (c Config) IsValidBeacon(data []byte) bool {
	if len(data) < 2 || data[0] != Magic[0] || data[1] != Magic[1] {
		return false
	}
	for _, n := range c.BeaconLengths {
		if len(data) == n {
			return true
		}
	}
	return false
}

// IsValidBeacon checks data against the default beacon lengths.
func IsValidBeacon(data []byte) bool {
	return DefaultConfig().IsValidBeacon(data)
}
