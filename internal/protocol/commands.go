package protocol

import (
	"encoding/binary"
	"fmt"
)

// Auto-shutdown bounds accepted by the device, in seconds
const (
	MinShutdownSeconds = 3600
	MaxShutdownSeconds = 86340
)

// Reserved-zone markers, the first three bytes of header offset 12
var (
	markerLegacy   = [3]byte{0x34, 0x00, 0x01}
	markerStatusV2 = [3]byte{0x39, 0x00, 0x01}
	markerPosition = [3]byte{0x29, 0x04, 0x01}
	markerStop     = [3]byte{0x23, 0x23, 0x01}
	markerBreeze   = [3]byte{0x00, 0x00, 0x01}
	markerLoginV2  = [3]byte{0xff, 0x03, 0x01}
)

// Runner command group and sub-commands (payload bytes 27-28)
const (
	runnerGroup      = 0x37
	runnerPosition   = 0x01
	runnerStop       = 0x02
	runnerChildLock  = 0x03
	runnerLight      = 0x05
	runnerPadding    = 27
	legacyPadding    = 28
	powerSubcommand  = 0x06
	configSubcommand = 0x04
)

func reserved(marker [3]byte) [12]byte {
	var r [12]byte
	copy(r[:], marker[:])
	return r
}

func newPacket(f Frame, layout Layout, version, command [2]byte, marker [3]byte) *Packet {
	return &Packet{
		Layout:    layout,
		Version:   version,
		Command:   command,
		Session:   f.Session,
		Reserved:  reserved(marker),
		Timestamp: f.Timestamp,
		DeviceID:  f.DeviceID,
		PhoneID:   f.PhoneID,
		Password:  f.Password,
	}
}

// NewLoginCommand builds the legacy login request. The session field is
// always zero.
func NewLoginCommand(f Frame) *Packet {
	f.Session = SessionToken{}
	p := newPacket(f, LayoutLogin, VersionLegacy, CommandLogin, markerLegacy)
	p.DeviceID = DeviceID{}
	p.Payload = make([]byte, legacyPadding)
	return p
}

// NewLoginV2Command builds the login request of the newer families. The
// phone id is carried inside the reserved zone.
func NewLoginV2Command(f Frame) *Packet {
	f.Session = SessionToken{}
	p := newPacket(f, LayoutShort, VersionV2, CommandLoginV2, markerLoginV2)
	copy(p.Reserved[6:8], f.PhoneID[:])
	return p
}

// NewStatusCommand builds a status query. newGen selects the v2 request.
func NewStatusCommand(f Frame, newGen bool) *Packet {
	if newGen {
		return newPacket(f, LayoutShort, VersionV2, CommandStatus, markerStatusV2)
	}
	return newPacket(f, LayoutShort, VersionLegacy, CommandStatus, markerLegacy)
}

// TimerValue encodes an auto-off duration in minutes as LE seconds.
// Zero means no auto-off.
func TimerValue(minutes int) [4]byte {
	var v [4]byte
	if minutes <= 0 {
		return v
	}
	binary.LittleEndian.PutUint32(v[:], uint32(minutes)*60)
	return v
}

// NewPowerCommand builds an on/off request with an optional auto-off timer.
func NewPowerCommand(f Frame, on bool, minutes int) *Packet {
	p := newPacket(f, LayoutAuth, VersionLegacy, CommandControl, markerLegacy)

	payload := make([]byte, legacyPadding, legacyPadding+9)
	state := byte(0x00)
	timer := [4]byte{}
	if on {
		state = 0x01
		timer = TimerValue(minutes)
	}
	payload = append(payload, 0x01, powerSubcommand, 0x00, state, 0x00)
	payload = append(payload, timer[:]...)
	p.Payload = payload
	return p
}

// ClampShutdown bounds an auto-shutdown duration to what the device accepts.
func ClampShutdown(seconds int) int {
	if seconds < MinShutdownSeconds {
		return MinShutdownSeconds
	}
	if seconds > MaxShutdownSeconds {
		return MaxShutdownSeconds
	}
	return seconds
}

// NewDefaultShutdownCommand builds the request that sets the default
// auto-shutdown duration. seconds is clamped.
func NewDefaultShutdownCommand(f Frame, seconds int) *Packet {
	p := newPacket(f, LayoutAuth, VersionLegacy, CommandControl, markerLegacy)
	payload := make([]byte, legacyPadding, legacyPadding+7)
	payload = append(payload, configSubcommand, 0x04, 0x00)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(ClampShutdown(seconds)))
	p.Payload = payload
	return p
}

func runnerPayload(sub byte, args ...byte) []byte {
	payload := make([]byte, runnerPadding, runnerPadding+2+len(args))
	payload = append(payload, runnerGroup, sub)
	return append(payload, args...)
}

// NewPositionCommand builds a shutter position request. gang selects the
// channel on multi-channel runners and is 0 otherwise.
func NewPositionCommand(f Frame, gang, position int) (*Packet, error) {
	if position < 0 || position > 100 {
		return nil, fmt.Errorf("position %d out of range 0-100", position)
	}
	if gang < 0 || gang > 0xff {
		return nil, fmt.Errorf("invalid channel index %d", gang)
	}
	p := newPacket(f, LayoutAuth, VersionV2, CommandControl, markerPosition)
	p.Payload = runnerPayload(runnerPosition, 0x01, byte(gang), byte(position))
	return p, nil
}

// NewStopCommand builds a request that stops a moving shutter.
func NewStopCommand(f Frame, gang int) *Packet {
	p := newPacket(f, LayoutAuth, VersionV2, CommandControl, markerStop)
	p.Payload = runnerPayload(runnerStop, 0x02, byte(gang), 0x00, 0x00)
	return p
}

// NewChildLockCommand enables or disables the physical buttons of a runner.
func NewChildLockCommand(f Frame, gang int, locked bool) *Packet {
	p := newPacket(f, LayoutAuth, VersionV2, CommandControl, markerPosition)
	p.Payload = runnerPayload(runnerChildLock, 0x01, byte(gang), boolByte(locked))
	return p
}

// NewLightCommand switches one light circuit of an S11/S12 runner.
func NewLightCommand(f Frame, index int, on bool) *Packet {
	p := newPacket(f, LayoutAuth, VersionV2, CommandControl, markerPosition)
	p.Payload = runnerPayload(runnerLight, 0x01, byte(index), boolByte(on))
	return p
}

// IRCommand encodes an IR waveform for the breeze: four zero bytes followed
// by the ASCII of "Para|HexCode".
func IRCommand(para, hexCode string) []byte {
	cmd := make([]byte, 4, 4+len(para)+1+len(hexCode))
	cmd = append(cmd, para...)
	cmd = append(cmd, '|')
	return append(cmd, hexCode...)
}

// NewBreezeCommand builds a request that makes a breeze emit the given IR
// command (see IRCommand).
func NewBreezeCommand(f Frame, command []byte) *Packet {
	p := newPacket(f, LayoutAuth, VersionV2, CommandControl, markerBreeze)
	payload := make([]byte, runnerPadding, runnerPadding+4+len(command))
	payload = append(payload, runnerGroup, 0x01)
	payload = binary.LittleEndian.AppendUint16(payload, uint16(len(command)))
	p.Payload = append(payload, command...)
	return p
}

func boolByte(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}
