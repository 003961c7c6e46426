package breeze

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/muurk/switcher/internal/protocol"
)

// Fixed command keys
const (
	KeyOff      = "off"
	KeyOnPrefix = "on_"
	KeySwingOn  = "FUN_d1"
	KeySwingOff = "FUN_d0"
)

// SeparatedSwingDelay is the pause between the primary command and the
// swing command on remotes with separated swing.
const SeparatedSwingDelay = time.Second

var (
	// ErrNoCommand is returned when no wave matches the computed key.
	ErrNoCommand = errors.New("no matching IR command")
	// ErrAlreadyOff is returned when asked to power off an AC that is off.
	ErrAlreadyOff = errors.New("already off")
)

// State is the semantic AC state a breeze is asked to reach.
type State = protocol.ACState

// Command is a resolved IR command.
type Command struct {
	Key  string // the computed key
	Wave Wave   // the matching wave, whose key may be shorter
}

// Payload returns the IR command bytes sent to the breeze.
func (c Command) Payload() []byte {
	return protocol.IRCommand(c.Wave.Para, c.Wave.HexCode)
}

func (c Command) String() string {
	if c.Key == c.Wave.Key {
		return c.Key
	}
	return fmt.Sprintf("%s (via %s)", c.Key, c.Wave.Key)
}

// Encode computes the command key for state: the mode code, the target
// temperature for COOL and HEAT, the fan code when the remote knows that fan
// level, and "_d1" when swing is on and not separated.
func Encode(state State, caps *CapabilitySet) string {
	var sb strings.Builder
	sb.WriteString(state.Mode.Code())

	if state.Mode == protocol.ModeCool || state.Mode == protocol.ModeHeat {
		temp := state.TargetTemp
		if caps.MaxTemp > 0 {
			temp = min(max(temp, caps.MinTemp), caps.MaxTemp)
		}
		fmt.Fprintf(&sb, "%02d", temp)
	}

	if caps.SupportsFan(state.Fan) {
		sb.WriteString("_")
		sb.WriteString(state.Fan.Code())
	}

	if caps.Swing && !caps.SeparatedSwing && state.Swing == protocol.On {
		sb.WriteString("_d1")
	}
	return sb.String()
}

// Lookup finds the wave for key: an exact match first, otherwise the first
// wave whose key is contained in key.
func (s *CapabilitySet) Lookup(key string) (Wave, bool) {
	for _, w := range s.Waves {
		if w.Key == key {
			return w, true
		}
	}
	for _, w := range s.Waves {
		if w.Key != "" && strings.Contains(key, w.Key) {
			return w, true
		}
	}
	return Wave{}, false
}

// Resolve picks the command that moves the AC from currentPower to target.
func Resolve(target State, caps *CapabilitySet, currentPower protocol.OnOff) (Command, error) {
	var key string
	switch {
	case target.Power == protocol.Off && currentPower == protocol.On:
		key = KeyOff
	case target.Power == protocol.Off:
		return Command{}, ErrAlreadyOff
	case currentPower == protocol.Off && caps.OnOffType:
		key = KeyOnPrefix + Encode(target, caps)
	default:
		key = Encode(target, caps)
	}
	return lookup(caps, key)
}

// SwingCommand resolves the separate swing wave of remotes with separated
// swing.
func SwingCommand(caps *CapabilitySet, swing protocol.OnOff) (Command, error) {
	key := KeySwingOff
	if swing == protocol.On {
		key = KeySwingOn
	}
	return lookup(caps, key)
}

func lookup(caps *CapabilitySet, key string) (Command, error) {
	w, ok := caps.Lookup(key)
	if !ok {
		return Command{Key: key}, fmt.Errorf("%w: %q on remote %s", ErrNoCommand, key, caps.RemoteID)
	}
	return Command{Key: key, Wave: w}, nil
}
