package device

import (
	"fmt"

	"github.com/muurk/switcher/internal/breeze"
	"github.com/muurk/switcher/internal/protocol"
)

// EventKind identifies the type of a controller event
type EventKind int

const (
	EventStatus EventKind = iota
	EventStateChanged
	EventDurationChanged
	EventPositionChanged
	EventBreezeChanged
	EventCapabilities
	EventError
)

// String returns the name of the event kind
func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventStateChanged:
		return "state-changed"
	case EventDurationChanged:
		return "duration-changed"
	case EventPositionChanged:
		return "position-changed"
	case EventBreezeChanged:
		return "breeze-changed"
	case EventCapabilities:
		return "breeze-capabilities"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", k)
	}
}

// Event is implemented by every value delivered on a controller's event
// channel
type Event interface {
	Kind() EventKind
	String() string
}

// StatusEvent carries the state announced by a beacon of the controlled
// device
type StatusEvent struct {
	DeviceID protocol.DeviceID
	Switch   *protocol.SwitchState
	Shutter  *protocol.ShutterState
	Breeze   *protocol.BreezeState
}

func (e *StatusEvent) Kind() EventKind { return EventStatus }

func (e *StatusEvent) String() string {
	switch {
	case e.Switch != nil:
		return fmt.Sprintf("StatusEvent{device=%s, power=%s, consumption=%dW, remaining=%ds}",
			e.DeviceID, e.Switch.Power, e.Switch.PowerConsumption, e.Switch.RemainingSeconds)
	case e.Shutter != nil && len(e.Shutter.Channels) > 0:
		ch := e.Shutter.Channels[0]
		return fmt.Sprintf("StatusEvent{device=%s, position=%d, direction=%s}", e.DeviceID, ch.Position, ch.Direction)
	case e.Breeze != nil:
		return fmt.Sprintf("StatusEvent{device=%s, %s, current=%.1f}", e.DeviceID, e.Breeze.ACState, e.Breeze.CurrentTemp)
	default:
		return fmt.Sprintf("StatusEvent{device=%s}", e.DeviceID)
	}
}

// StateChangedEvent is emitted after the device acknowledged a power command
type StateChangedEvent struct {
	Power   protocol.OnOff
	Minutes int // auto-off timer, 0 for none
}

func (e *StateChangedEvent) Kind() EventKind { return EventStateChanged }

func (e *StateChangedEvent) String() string {
	return fmt.Sprintf("StateChangedEvent{power=%s, minutes=%d}", e.Power, e.Minutes)
}

// DurationChangedEvent is emitted after the default auto-shutdown was set
type DurationChangedEvent struct {
	Seconds int // after clamping
}

func (e *DurationChangedEvent) Kind() EventKind { return EventDurationChanged }

func (e *DurationChangedEvent) String() string {
	return fmt.Sprintf("DurationChangedEvent{seconds=%d}", e.Seconds)
}

// PositionChangedEvent is emitted after a shutter accepted a new position
type PositionChangedEvent struct {
	Position int
	Gang     int
}

func (e *PositionChangedEvent) Kind() EventKind { return EventPositionChanged }

func (e *PositionChangedEvent) String() string {
	return fmt.Sprintf("PositionChangedEvent{position=%d, gang=%d}", e.Position, e.Gang)
}

// BreezeChangedEvent is emitted after a breeze accepted an IR command
type BreezeChangedEvent struct {
	Key string
}

func (e *BreezeChangedEvent) Kind() EventKind { return EventBreezeChanged }

func (e *BreezeChangedEvent) String() string {
	return fmt.Sprintf("BreezeChangedEvent{key=%s}", e.Key)
}

// CapabilitiesEvent is emitted once per controller when the breeze remote's
// capability set is loaded
type CapabilitiesEvent struct {
	Capabilities breeze.Capabilities
}

func (e *CapabilitiesEvent) Kind() EventKind { return EventCapabilities }

func (e *CapabilitiesEvent) String() string {
	c := e.Capabilities
	return fmt.Sprintf("CapabilitiesEvent{remote=%s, modes=%v, fans=%v, temp=%d-%d, swing=%v}",
		c.Remote, c.Modes, c.FanLevels, c.MinTemp, c.MaxTemp, c.Swing)
}

// ErrorEvent reports a failure that the caller may not otherwise observe,
// such as a failed login
type ErrorEvent struct {
	Err error
}

func (e *ErrorEvent) Kind() EventKind { return EventError }

func (e *ErrorEvent) String() string {
	return fmt.Sprintf("ErrorEvent{%v}", e.Err)
}
