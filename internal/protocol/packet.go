package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Header field offsets
const (
	offMagic     = 0
	offLength    = 2
	offVersion   = 4
	offCommand   = 6
	offSession   = 8
	offReserved  = 12
	offTimestamp = 24
	offTrailer   = 38 // f0 fe
	HeaderSize   = 40
)

// Versions and command codes
var (
	VersionLegacy = [2]byte{0x02, 0x32}
	VersionV2     = [2]byte{0x03, 0x05}

	CommandLogin   = [2]byte{0xa1, 0x00}
	CommandLoginV2 = [2]byte{0xa6, 0x00}
	CommandControl = [2]byte{0x01, 0x02}
	CommandStatus  = [2]byte{0x01, 0x03}
)

// Layout selects the tail that follows the 40-byte header.
type Layout uint8

const (
	// LayoutShort: device id, 00
	LayoutShort Layout = iota
	// LayoutAuth: device id, 00, phone id, 00 00, password, payload
	LayoutAuth
	// LayoutLogin: 1c 00, phone id, 00 00, password, payload
	LayoutLogin
)

func (l Layout) tailSize() int {
	switch l {
	case LayoutAuth:
		return 12
	case LayoutLogin:
		return 10
	default:
		return 4
	}
}

func (l Layout) String() string {
	switch l {
	case LayoutShort:
		return "short"
	case LayoutAuth:
		return "auth"
	case LayoutLogin:
		return "login"
	default:
		return fmt.Sprintf("Layout(%d)", l)
	}
}

// DeviceID is the 3-byte device identifier.
type DeviceID [3]byte

// ParseDeviceID parses the 6-character hex form of a device id.
func ParseDeviceID(s string) (DeviceID, error) {
	var id DeviceID
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return id, fmt.Errorf("invalid device id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid device id %q: want %d bytes, got %d", s, len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id DeviceID) String() string { return hex.EncodeToString(id[:]) }

// MarshalText implements encoding.TextMarshaler.
func (id DeviceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *DeviceID) UnmarshalText(text []byte) error {
	parsed, err := ParseDeviceID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SessionToken is the 4-byte credential returned by login.
type SessionToken [4]byte

// IsZero reports whether no session has been obtained.
func (s SessionToken) IsZero() bool { return s == SessionToken{} }

func (s SessionToken) String() string { return hex.EncodeToString(s[:]) }

// Frame carries the addressing fields common to every outbound packet.
type Frame struct {
	DeviceID  DeviceID
	Session   SessionToken
	Timestamp uint32
	PhoneID   [2]byte
	Password  [4]byte
}

// Packet is a decoded or to-be-encoded protocol packet.
type Packet struct {
	Layout    Layout
	Length    uint16 // total length including checksums, set by Build and Parse
	Version   [2]byte
	Command   [2]byte
	Session   SessionToken
	Reserved  [12]byte
	Timestamp uint32
	DeviceID  DeviceID
	PhoneID   [2]byte
	Password  [4]byte
	Payload   []byte
	Checksum1 uint16
	Checksum2 uint16
}

// Body assembles the unsigned packet with its length field filled in.
func (p *Packet) Body() []byte {
	size := HeaderSize + p.Layout.tailSize()
	if p.Layout != LayoutShort {
		size += len(p.Payload)
	}
	b := make([]byte, size)

	b[offMagic] = Magic[0]
	b[offMagic+1] = Magic[1]
	binary.LittleEndian.PutUint16(b[offLength:], uint16(size+4))
	copy(b[offVersion:], p.Version[:])
	copy(b[offCommand:], p.Command[:])
	copy(b[offSession:], p.Session[:])
	copy(b[offReserved:], p.Reserved[:])
	binary.LittleEndian.PutUint32(b[offTimestamp:], p.Timestamp)
	b[offTrailer] = 0xf0
	b[offTrailer+1] = 0xfe

	tail := b[HeaderSize:]
	switch p.Layout {
	case LayoutShort:
		copy(tail[0:3], p.DeviceID[:])
	case LayoutAuth:
		copy(tail[0:3], p.DeviceID[:])
		copy(tail[4:6], p.PhoneID[:])
		copy(tail[8:12], p.Password[:])
		copy(tail[12:], p.Payload)
	case LayoutLogin:
		tail[0] = 0x1c
		copy(tail[2:4], p.PhoneID[:])
		copy(tail[6:10], p.Password[:])
		copy(tail[10:], p.Payload)
	}
	return b
}

// Build encodes and signs p, updating its Length and checksum fields.
func Build(p *Packet, key []byte) []byte {
	body := p.Body()
	out := AppendSignature(body, key)
	p.Length = uint16(len(out))
	p.Checksum1 = binary.LittleEndian.Uint16(out[len(out)-4:])
	p.Checksum2 = binary.LittleEndian.Uint16(out[len(out)-2:])
	return out
}

// Parse decodes a signed packet using the given tail layout. Checksums are
// extracted but not verified; use Verify for that.
func Parse(data []byte, layout Layout) (*Packet, error) {
	minSize := HeaderSize + layout.tailSize() + 4
	if len(data) < minSize {
		return nil, &DecodeError{What: "packet", Offset: 0, Need: minSize, Have: len(data)}
	}
	if data[offMagic] != Magic[0] || data[offMagic+1] != Magic[1] {
		return nil, fmt.Errorf("invalid magic: %02x %02x", data[0], data[1])
	}

	p := &Packet{Layout: layout}
	p.Length = binary.LittleEndian.Uint16(data[offLength:])
	if int(p.Length) != len(data) {
		return nil, fmt.Errorf("length field %d does not match packet size %d", p.Length, len(data))
	}
	copy(p.Version[:], data[offVersion:])
	copy(p.Command[:], data[offCommand:])
	copy(p.Session[:], data[offSession:])
	copy(p.Reserved[:], data[offReserved:offTimestamp])
	p.Timestamp = binary.LittleEndian.Uint32(data[offTimestamp:])

	body := data[:len(data)-4]
	tail := body[HeaderSize:]
	switch layout {
	case LayoutShort:
		copy(p.DeviceID[:], tail[0:3])
	case LayoutAuth:
		copy(p.DeviceID[:], tail[0:3])
		copy(p.PhoneID[:], tail[4:6])
		copy(p.Password[:], tail[8:12])
		p.Payload = append([]byte(nil), tail[12:]...)
	case LayoutLogin:
		copy(p.PhoneID[:], tail[2:4])
		copy(p.Password[:], tail[6:10])
		p.Payload = append([]byte(nil), tail[10:]...)
	}

	p.Checksum1 = binary.LittleEndian.Uint16(data[len(data)-4:])
	p.Checksum2 = binary.LittleEndian.Uint16(data[len(data)-2:])
	return p, nil
}

// ParseHex decodes the hex-string form of a packet.
func ParseHex(s string, layout Layout) (*Packet, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid packet hex: %w", err)
	}
	return Parse(data, layout)
}

// String returns a debug representation of the packet
func (p *Packet) String() string {
	return fmt.Sprintf("Packet{len=%d, ver=%x, cmd=%x, session=%s, device=%s, payload=%d bytes}",
		p.Length, p.Version, p.Command, p.Session, p.DeviceID, len(p.Payload))
}

// Hex returns the signed packet as a lowercase hex string.
func Hex(p *Packet, key []byte) string {
	return hex.EncodeToString(Build(p, key))
}
