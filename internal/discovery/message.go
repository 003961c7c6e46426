package discovery

import (
	"fmt"
	"strings"
	"time"

	"github.com/muurk/switcher/internal/protocol"
)

// MessageKind distinguishes listener lifecycle notices from device beacons
type MessageKind int

const (
	// MessageReady is sent once, after every broadcast port is bound
	MessageReady MessageKind = iota
	// MessageBeacon carries one decoded device beacon
	MessageBeacon
)

// String returns the name of the message kind
func (k MessageKind) String() string {
	switch k {
	case MessageReady:
		return "ready"
	case MessageBeacon:
		return "message"
	default:
		return fmt.Sprintf("MessageKind(%d)", k)
	}
}

// MarshalText implements encoding.TextMarshaler
func (k MessageKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *MessageKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ready":
		*k = MessageReady
	case "message":
		*k = MessageBeacon
	default:
		return fmt.Errorf("unknown message kind %q", text)
	}
	return nil
}

// Message is delivered by Listen
type Message struct {
	Kind MessageKind `json:"kind"`

	// Beacon is set for MessageBeacon
	Beacon *protocol.Beacon `json:"beacon,omitempty"`

	// Port is the broadcast port the beacon arrived on
	Port int `json:"port,omitempty"`

	// Addrs lists the bound sockets, for MessageReady
	Addrs []string `json:"addrs,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// String returns a human-readable representation of the message
func (m Message) String() string {
	if m.Kind == MessageReady {
		return fmt.Sprintf("ready on %s", strings.Join(m.Addrs, ", "))
	}
	if m.Beacon == nil {
		return m.Kind.String()
	}
	return fmt.Sprintf("%s from port %d", m.Beacon.Descriptor(), m.Port)
}

// Filter selects beacons. A beacon matches when any non-empty field equals
// the corresponding beacon field; the zero Filter matches every beacon.
type Filter struct {
	ID   string // hex device id, case-insensitive
	Name string // device name, case-insensitive
	IP   string // datagram source address
}

// Key returns a filter matching key against the id, the name and the IP
func Key(key string) Filter {
	return Filter{ID: key, Name: key, IP: key}
}

// IsZero reports whether f matches every beacon
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Match reports whether b is selected by f
func (f Filter) Match(b *protocol.Beacon) bool {
	if b == nil {
		return false
	}
	if f.IsZero() {
		return true
	}
	if f.ID != "" && strings.EqualFold(f.ID, b.ID.String()) {
		return true
	}
	if f.Name != "" && strings.EqualFold(f.Name, b.Name) {
		return true
	}
	return f.IP != "" && f.IP == b.IP
}

func (f Filter) String() string {
	if f.IsZero() {
		return "any device"
	}
	var parts []string
	if f.ID != "" {
		parts = append(parts, "id="+f.ID)
	}
	if f.Name != "" {
		parts = append(parts, "name="+f.Name)
	}
	if f.IP != "" {
		parts = append(parts, "ip="+f.IP)
	}
	return strings.Join(parts, " or ")
}
