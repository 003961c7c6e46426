package protocol

import (
	"fmt"
	"strings"
)

// OnOff is a two-state switch value used for power and swing.
type OnOff uint8

const (
	Off OnOff = iota
	On
)

func (o OnOff) String() string {
	if o == On {
		return "ON"
	}
	return "OFF"
}

// MarshalText implements encoding.TextMarshaler.
func (o OnOff) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *OnOff) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "ON", "1", "TRUE":
		*o = On
	case "OFF", "0", "FALSE":
		*o = Off
	default:
		return fmt.Errorf("invalid on/off value %q", text)
	}
	return nil
}

// Mode is an air-conditioner operating mode. The numeric value is the wire
// byte; the zero value is not a valid mode.
type Mode uint8

const (
	ModeAuto Mode = 0x01
	ModeDry  Mode = 0x02
	ModeFan  Mode = 0x03
	ModeCool Mode = 0x04
	ModeHeat Mode = 0x05
)

var modeNames = map[Mode]string{
	ModeAuto: "AUTO",
	ModeDry:  "DRY",
	ModeFan:  "FAN",
	ModeCool: "COOL",
	ModeHeat: "HEAT",
}

// Command-key prefixes of each mode in IR capability sets
var modeCodes = map[Mode]string{
	ModeAuto: "aa",
	ModeDry:  "ad",
	ModeFan:  "aw",
	ModeCool: "ar",
	ModeHeat: "ah",
}

// Modes lists the valid modes in wire order.
func Modes() []Mode {
	return []Mode{ModeAuto, ModeDry, ModeFan, ModeCool, ModeHeat}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// Code returns the two-letter command-key prefix ("ar" for COOL).
func (m Mode) Code() string { return modeCodes[m] }

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ModeFromCode resolves a two-letter command-key prefix.
func ModeFromCode(code string) (Mode, bool) {
	for m, c := range modeCodes {
		if c == code {
			return m, true
		}
	}
	return 0, false
}

// ParseMode resolves a mode by name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// FanLevel is an air-conditioner fan speed. The numeric value is the wire
// nibble.
type FanLevel uint8

const (
	FanAuto FanLevel = iota
	FanLow
	FanMedium
	FanHigh
)

var fanNames = [...]string{"AUTO", "LOW", "MEDIUM", "HIGH"}

// FanLevels lists the valid fan levels in wire order.
func FanLevels() []FanLevel {
	return []FanLevel{FanAuto, FanLow, FanMedium, FanHigh}
}

// Valid reports whether f is a known fan level.
func (f FanLevel) Valid() bool { return int(f) < len(fanNames) }

// Code returns the command-key fragment ("f0" for AUTO).
func (f FanLevel) Code() string { return fmt.Sprintf("f%d", uint8(f)) }

func (f FanLevel) String() string {
	if f.Valid() {
		return fanNames[f]
	}
	return fmt.Sprintf("FanLevel(%d)", uint8(f))
}

// FanLevelFromCode resolves a command-key fragment such as "f2".
func FanLevelFromCode(code string) (FanLevel, bool) {
	if len(code) != 2 || code[0] != 'f' || code[1] < '0' || code[1] > '3' {
		return 0, false
	}
	return FanLevel(code[1] - '0'), true
}

// ParseFanLevel resolves a fan level by name, case-insensitively.
func ParseFanLevel(s string) (FanLevel, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range fanNames {
		if name == s {
			return FanLevel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown fan level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f FanLevel) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FanLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseFanLevel(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Direction is the movement of a shutter motor.
type Direction uint8

const (
	DirectionStop Direction = iota
	DirectionUp
	DirectionDown
	DirectionUnknown
)

// directionFromWire decodes the two direction bytes.
func directionFromWire(b0, b1 byte) Direction {
	switch {
	case b0 == 0x00 && b1 == 0x00:
		return DirectionStop
	case b0 == 0x01 && b1 == 0x00:
		return DirectionUp
	case b0 == 0x00 && b1 == 0x01:
		return DirectionDown
	default:
		return DirectionUnknown
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionStop:
		return "STOP"
	case DirectionUp:
		return "UP"
	case DirectionDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "STOP":
		*d = DirectionStop
	case "UP":
		*d = DirectionUp
	case "DOWN":
		*d = DirectionDown
	default:
		*d = DirectionUnknown
	}
	return nil
}

// ACState is the controllable state of an air conditioner driven by a breeze.
type ACState struct {
	Power      OnOff    `json:"power"`
	Mode       Mode     `json:"mode"`
	Fan        FanLevel `json:"fan_level"`
	TargetTemp int      `json:"target_temp"`
	Swing      OnOff    `json:"swing"`
}

func (s ACState) String() string {
	return fmt.Sprintf("%s %s %d° fan=%s swing=%s", s.Power, s.Mode, s.TargetTemp, s.Fan, s.Swing)
}
