package protocol

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Beacon field offsets
const (
	beaconIDOffset    = 18
	beaconNameOffset  = 40
	beaconNameLen     = 32
	beaconGroupOffset = 74
	beaconCodeOffset  = 75
	beaconIPOffset    = 76
)

// ErrInvalidBeacon is returned for datagrams that are not Switcher beacons.
var ErrInvalidBeacon = errors.New("invalid beacon")

// Descriptor identifies a device on the network. It is a value type and is
// never mutated after discovery or construction.
type Descriptor struct {
	ID     DeviceID `json:"id"`
	Name   string   `json:"name,omitempty"`
	IP     string   `json:"ip"`
	Family Family   `json:"family"`
}

// TCPPort returns the command port, derived from the family.
func (d Descriptor) TCPPort() int { return d.Family.TCPPort() }

// Addr returns the host:port of the command socket.
func (d Descriptor) Addr() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.TCPPort()))
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s (%s) at %s", d.Family, d.ID, d.Name, d.IP)
}

// Beacon is a decoded UDP broadcast. At most one of the state fields is set;
// none is set for unknown families.
type Beacon struct {
	ID         DeviceID      `json:"id"`
	Name       string        `json:"name"`
	Family     Family        `json:"family"`
	IP         string        `json:"ip"`          // datagram source
	ReportedIP string        `json:"reported_ip"` // as announced by the device
	Switch     *SwitchState  `json:"switch,omitempty"`
	Shutter    *ShutterState `json:"shutter,omitempty"`
	Breeze     *BreezeState  `json:"breeze,omitempty"`
	Raw        []byte        `json:"-"`
}

// Descriptor returns the device descriptor announced by the beacon. The
// datagram source address is preferred over the reported one.
func (b *Beacon) Descriptor() Descriptor {
	ip := b.IP
	if ip == "" {
		ip = b.ReportedIP
	}
	return Descriptor{ID: b.ID, Name: b.Name, IP: ip, Family: b.Family}
}

// DecodeBeacon validates and decodes a broadcast datagram received from ip.
// It never panics; any failure yields an error wrapping ErrInvalidBeacon.
func (c Config) DecodeBeacon(data []byte, ip string) (*Beacon, error) {
	if !c.IsValidBeacon(data) {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidBeacon, len(data))
	}

	b := &Beacon{
		Name:   printable(data[beaconNameOffset : beaconNameOffset+beaconNameLen]),
		Family: FamilyFromCode(data[beaconGroupOffset], data[beaconCodeOffset]),
		IP:     ip,
		ReportedIP: net.IPv4(data[beaconIPOffset], data[beaconIPOffset+1],
			data[beaconIPOffset+2], data[beaconIPOffset+3]).String(),
		Raw: append([]byte(nil), data...),
	}
	copy(b.ID[:], data[beaconIDOffset:])

	var err error
	switch b.Family.StateKind() {
	case StateSwitch:
		b.Switch, err = decodeSwitch(data, switchBeaconLayout)
	case StateShutter:
		b.Shutter, err = decodeShutter(data, shutterBeaconLayout, b.Family.Channels())
	case StateBreeze:
		b.Breeze, err = decodeBreeze(data, breezeBeaconLayout)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBeacon, err)
	}
	return b, nil
}

// DecodeBeacon decodes data with the default configuration.
func DecodeBeacon(data []byte, ip string) (*Beacon, error) {
	return DefaultConfig().DecodeBeacon(data, ip)
}
