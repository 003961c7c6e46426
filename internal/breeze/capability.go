package breeze

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strconv"

	"github.com/muurk/switcher/internal/protocol"
)

// ErrRemoteNotFound is returned by a CapabilityProvider that has no set for
// the requested remote.
var ErrRemoteNotFound = errors.New("remote capability set not found")

// CapabilityProvider maps a remote identifier to its IR capability set.
type CapabilityProvider interface {
	CapabilitySet(ctx context.Context, remoteID string) (*CapabilitySet, error)
}

// Wave is one IR waveform of a remote.
type Wave struct {
	Key     string `json:"Key"`
	Para    string `json:"Para"`
	HexCode string `json:"HexCode"`
}

// CapabilitySet is the IR code table of one AC remote. It is read-only once
// loaded.
type CapabilitySet struct {
	RemoteID       string
	Waves          []Wave
	OnOffType      bool // separate on_ prefixed waves exist for power-on
	SeparatedSwing bool // swing is toggled by its own FUN_d1/FUN_d0 waves

	MinTemp   int
	MaxTemp   int
	Swing     bool
	FanLevels []protocol.FanLevel
	Modes     []protocol.Mode
}

// NewCapabilitySet builds a set and derives its modes, fan levels,
// temperature range and swing support from the wave keys.
func NewCapabilitySet(remoteID string, waves []Wave, onOffType, separatedSwing bool) *CapabilitySet {
	set := &CapabilitySet{
		RemoteID:       remoteID,
		Waves:          waves,
		OnOffType:      onOffType,
		SeparatedSwing: separatedSwing,
	}
	caps := DeriveCapabilities(set)
	set.MinTemp = caps.MinTemp
	set.MaxTemp = caps.MaxTemp
	set.Swing = caps.Swing
	set.FanLevels = caps.FanLevels
	set.Modes = caps.Modes
	return set
}

// SupportsFan reports whether the remote has waves for fan level f.
func (s *CapabilitySet) SupportsFan(f protocol.FanLevel) bool {
	return slices.Contains(s.FanLevels, f)
}

// SupportsMode reports whether the remote has waves for mode m.
func (s *CapabilitySet) SupportsMode(m protocol.Mode) bool {
	return slices.Contains(s.Modes, m)
}

// Capabilities summarizes what a remote can do.
type Capabilities struct {
	Remote    string              `json:"remote"`
	Modes     []protocol.Mode     `json:"modes"`
	FanLevels []protocol.FanLevel `json:"fan_levels"`
	Swing     bool                `json:"swing"`
	MinTemp   int                 `json:"min_temp"`
	MaxTemp   int                 `json:"max_temp"`
}

var (
	fanPattern   = regexp.MustCompile(`f\d`)
	swingPattern = regexp.MustCompile(`d1`)
)

// DeriveCapabilities scans the wave keys of set. Keys look like "ar24_f1_d1":
// a mode code, an optional two-digit temperature, then fan and swing parts.
func DeriveCapabilities(set *CapabilitySet) Capabilities {
	caps := Capabilities{
		Remote:  set.RemoteID,
		MinTemp: 100,
		MaxTemp: 0,
	}

	for _, w := range set.Waves {
		key := w.Key
		if len(key) >= 2 {
			if m, ok := protocol.ModeFromCode(key[:2]); ok && !slices.Contains(caps.Modes, m) {
				caps.Modes = append(caps.Modes, m)
			}
		}

		if code := fanPattern.FindString(key); code != "" {
			if f, ok := protocol.FanLevelFromCode(code); ok && !slices.Contains(caps.FanLevels, f) {
				caps.FanLevels = append(caps.FanLevels, f)
			}
		}

		if len(key) >= 4 {
			if t, err := strconv.Atoi(key[2:4]); err == nil && t > 0 {
				caps.MaxTemp = max(caps.MaxTemp, t)
				caps.MinTemp = min(caps.MinTemp, t)
			}
		}

		if swingPattern.MatchString(key) {
			caps.Swing = true
		}
	}

	if caps.MaxTemp == 0 {
		// no temperature-bearing keys
		caps.MinTemp = 0
	}
	return caps
}
