package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/switcher/internal/protocol"
)

// FormatSeconds renders a duration in seconds as hh:mm:ss
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}

// SwitchSummary is the one-line state of a relay
func SwitchSummary(s *protocol.SwitchState) string {
	if s.Power != protocol.On {
		return "OFF"
	}
	out := fmt.Sprintf("ON %dW", s.PowerConsumption)
	if s.RemainingSeconds > 0 {
		out += " " + FormatSeconds(s.RemainingSeconds) + " left"
	}
	return out
}

// ShutterSummary is the one-line state of every shutter channel
func ShutterSummary(s *protocol.ShutterState) string {
	parts := make([]string, 0, len(s.Channels))
	for i, ch := range s.Channels {
		part := fmt.Sprintf("%d%% %s", ch.Position, ch.Direction)
		if ch.ChildLock {
			part += " locked"
		}
		if len(s.Channels) > 1 {
			part = fmt.Sprintf("#%d %s", i, part)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

// BreezeSummary is the one-line state of a breeze and its AC
func BreezeSummary(s *protocol.BreezeState) string {
	room := fmt.Sprintf("(room %.1f°C)", s.CurrentTemp)
	if s.Power != protocol.On {
		return "OFF " + room
	}
	return fmt.Sprintf("%s %d° fan=%s swing=%s %s", s.Mode, s.TargetTemp, s.Fan, s.Swing, room)
}

// Summary is the one-line state of whichever state is set, or "" when
// none is.
func Summary(st protocol.Status) string {
	switch {
	case st.Switch != nil:
		return SwitchSummary(st.Switch)
	case st.Shutter != nil:
		return ShutterSummary(st.Shutter)
	case st.Breeze != nil:
		return BreezeSummary(st.Breeze)
	}
	return ""
}

// BeaconStatus returns the state carried by a beacon
func BeaconStatus(b *protocol.Beacon) protocol.Status {
	return protocol.Status{Switch: b.Switch, Shutter: b.Shutter, Breeze: b.Breeze}
}

// stateStyle picks the color of a state summary
func stateStyle(st protocol.Status) lipgloss.Style {
	switch {
	case st.Switch != nil && st.Switch.Power == protocol.On,
		st.Breeze != nil && st.Breeze.Power == protocol.On:
		return OnStyle
	case st.Shutter != nil:
		for _, ch := range st.Shutter.Channels {
			if ch.Direction == protocol.DirectionUp || ch.Direction == protocol.DirectionDown {
				return MovingStyle
			}
		}
		return ResultValueStyle
	}
	return OffStyle
}

// StatusDetails lists every field of a status for a result box
func StatusDetails(st protocol.Status) []Detail {
	var details []Detail
	if s := st.Switch; s != nil {
		details = append(details,
			D("Power", s.Power),
			D("Consumption", fmt.Sprintf("%d W", s.PowerConsumption)),
			D("Remaining", FormatSeconds(s.RemainingSeconds)),
			D("Auto shutdown", FormatSeconds(s.DefaultShutdownSeconds)),
		)
	}
	if s := st.Shutter; s != nil {
		for i, ch := range s.Channels {
			value := fmt.Sprintf("%d%% %s", ch.Position, ch.Direction)
			if ch.ChildLock {
				value += " (child lock)"
			}
			details = append(details, D(fmt.Sprintf("Channel %d", i), value))
		}
	}
	if s := st.Breeze; s != nil {
		details = append(details,
			D("Power", s.Power),
			D("Mode", s.Mode),
			D("Target", fmt.Sprintf("%d°C", s.TargetTemp)),
			D("Fan", s.Fan),
			D("Swing", s.Swing),
			D("Room", fmt.Sprintf("%.1f°C", s.CurrentTemp)),
			D("Remote", s.Remote),
		)
	}
	return details
}
