package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/muurk/switcher/internal/protocol"
)

// Registry represents the entire user configuration file.
// This stores known devices and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by hex device id
	Preferences *Preferences       `yaml:"preferences,omitempty"`

	path string
}

// Device represents what is remembered about a single Switcher device.
// This is keyed by the device's hex id in the Registry.
type Device struct {
	Name     string          `yaml:"name,omitempty"`      // Name announced in the beacon
	Nickname string          `yaml:"nickname,omitempty"`  // User-friendly name
	Family   protocol.Family `yaml:"family"`              // Device family
	LastIP   string          `yaml:"last_ip,omitempty"`   // Last known IP address
	LastSeen time.Time       `yaml:"last_seen,omitempty"` // Last discovery/connection time
	Remote   string          `yaml:"remote,omitempty"`    // Breeze IR remote id
	Channels map[int]string  `yaml:"channels,omitempty"`  // Shutter channel labels (keyed by gang index)
}

// DisplayName returns the nickname if set, otherwise the announced name
func (d *Device) DisplayName() string {
	if d.Nickname != "" {
		return d.Nickname
	}
	return d.Name
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DiscoverTimeout int    `yaml:"discover_timeout"`      // Discovery timeout in seconds
	IRSetDir        string `yaml:"ir_set_dir,omitempty"`  // Breeze capability sets, defaults to <config dir>/irsets
	BridgeAddr      string `yaml:"bridge_addr,omitempty"` // Listen address of `switcher serve`
	AnnounceBridge  bool   `yaml:"announce_bridge"`       // Advertise the bridge over mDNS
	RememberDevices bool   `yaml:"remember_devices"`      // Record discovered devices
	LogLevel        string `yaml:"log_level,omitempty"`   // Overridden by SWITCHER_LOG_LEVEL
}

// DefaultBridgeAddr is the listen address of the WebSocket bridge
const DefaultBridgeAddr = ":8765"

func defaultPreferences() *Preferences {
	return &Preferences{
		DiscoverTimeout: 10,
		BridgeAddr:      DefaultBridgeAddr,
		AnnounceBridge:  true,
		RememberDevices: true,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     schemaVersion,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice retrieves device metadata by id.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(id string) *Device {
	return r.Devices[strings.ToLower(id)]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new entry with default values.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(id string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	id = strings.ToLower(id)

	if device, exists := r.Devices[id]; exists {
		return device
	}

	device := &Device{}
	r.Devices[id] = device
	return device
}

// Remember records a discovered device: its announced name, family and
// current address.
func (r *Registry) Remember(desc protocol.Descriptor) *Device {
	device := r.EnsureDevice(desc.ID.String())
	if desc.Name != "" {
		device.Name = desc.Name
	}
	device.Family = desc.Family
	device.LastIP = desc.IP
	device.LastSeen = time.Now()
	return device
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(id, nickname string) {
	r.EnsureDevice(id).Nickname = nickname
}

// SetRemote records the IR remote a breeze drives.
func (r *Registry) SetRemote(id, remote string) {
	r.EnsureDevice(id).Remote = remote
}

// SetChannelLabel sets a label for one shutter channel.
func (r *Registry) SetChannelLabel(id string, gang int, label string) {
	device := r.EnsureDevice(id)
	if device.Channels == nil {
		device.Channels = make(map[int]string)
	}
	device.Channels[gang] = label
}

// Lookup finds a device by id, nickname or announced name (case-insensitive).
func (r *Registry) Lookup(key string) (string, *Device, bool) {
	if d := r.GetDevice(key); d != nil {
		return strings.ToLower(key), d, true
	}
	for id, d := range r.Devices {
		if strings.EqualFold(d.Nickname, key) || strings.EqualFold(d.Name, key) {
			return id, d, true
		}
	}
	return "", nil, false
}

// Descriptor rebuilds the device descriptor of a remembered device.
func (r *Registry) Descriptor(key string) (protocol.Descriptor, error) {
	id, d, ok := r.Lookup(key)
	if !ok {
		return protocol.Descriptor{}, fmt.Errorf("device %q is not in the registry", key)
	}
	if d.LastIP == "" {
		return protocol.Descriptor{}, fmt.Errorf("device %q has no known address", key)
	}
	devID, err := protocol.ParseDeviceID(id)
	if err != nil {
		return protocol.Descriptor{}, err
	}
	return protocol.Descriptor{ID: devID, Name: d.Name, IP: d.LastIP, Family: d.Family}, nil
}

// DiscoverTimeout returns the discovery timeout preference
func (r *Registry) DiscoverTimeout() time.Duration {
	if r.Preferences == nil || r.Preferences.DiscoverTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.Preferences.DiscoverTimeout) * time.Second
}
