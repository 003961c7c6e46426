package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/switcher/internal/protocol"
)

// DeviceRow is one line of the device table
type DeviceRow struct {
	ID       protocol.DeviceID
	Name     string
	Family   protocol.Family
	IP       string
	Status   protocol.Status
	LastSeen time.Time
}

// RowFromBeacon builds a table row from a beacon
func RowFromBeacon(b *protocol.Beacon, seen time.Time) DeviceRow {
	return DeviceRow{
		ID:       b.ID,
		Name:     b.Name,
		Family:   b.Family,
		IP:       b.Descriptor().IP,
		Status:   BeaconStatus(b),
		LastSeen: seen,
	}
}

// RowFromDescriptor builds a table row without state
func RowFromDescriptor(d protocol.Descriptor) DeviceRow {
	return DeviceRow{ID: d.ID, Name: d.Name, Family: d.Family, IP: d.IP}
}

var tableColumns = []struct {
	title string
	width int
}{
	{"ID", 8},
	{"NAME", 18},
	{"FAMILY", 12},
	{"IP", 16},
}

// RenderDeviceTable renders rows as an aligned table. The state column
// takes the remaining width.
func RenderDeviceTable(rows []DeviceRow, width int) string {
	if len(rows) == 0 {
		return StatusBarStyle.Render("No devices.")
	}

	stateWidth := width - 2
	for _, c := range tableColumns {
		stateWidth -= c.width + 1
	}
	if stateWidth < 12 {
		stateWidth = 12
	}

	cell := func(w int) lipgloss.Style {
		return lipgloss.NewStyle().Width(w)
	}

	var b strings.Builder
	header := make([]string, 0, len(tableColumns)+1)
	for _, c := range tableColumns {
		header = append(header, TableHeaderStyle.Width(c.width).Render(c.title))
	}
	header = append(header, TableHeaderStyle.Render("STATE"))
	b.WriteString("  " + strings.Join(header, " ") + "\n")

	for _, r := range rows {
		values := []string{r.ID.String(), r.Name, r.Family.String(), r.IP}
		line := make([]string, 0, len(values)+1)
		for i, v := range values {
			line = append(line, cell(tableColumns[i].width).Render(truncate(v, tableColumns[i].width)))
		}
		state := Summary(r.Status)
		if state == "" {
			state = "-"
		}
		line = append(line, stateStyle(r.Status).Render(truncate(state, stateWidth)))
		b.WriteString("  " + strings.Join(line, " ") + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// truncate shortens s to w cells with an ellipsis
func truncate(s string, w int) string {
	if lipgloss.Width(s) <= w {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > w {
		r = r[:len(r)-1]
	}
	return fmt.Sprintf("%s…", string(r))
}
