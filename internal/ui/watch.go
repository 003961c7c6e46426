package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/switcher/internal/discovery"
	"github.com/muurk/switcher/internal/protocol"
)

// Messages for the watch stream
type messageMsg discovery.Message
type streamClosedMsg struct{}

// watchKeyMap defines key bindings for the watch screen
type watchKeyMap struct {
	Clear key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Clear, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Clear}, {k.Help, k.Quit}}
}

// WatchModel shows one live row per device heard on a discovery stream
type WatchModel struct {
	Title  string
	source <-chan discovery.Message

	rows   map[protocol.DeviceID]DeviceRow
	addrs  []string
	ended  bool
	count  int
	width  int
	height int

	Spinner spinner.Model
	Help    help.Model
	Keys    watchKeyMap
}

// NewWatchModel creates a watch screen fed by source
func NewWatchModel(title string, source <-chan discovery.Message) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	width, height := GetTerminalSize()

	return WatchModel{
		Title:   title,
		source:  source,
		rows:    make(map[protocol.DeviceID]DeviceRow),
		width:   width,
		height:  height,
		Spinner: s,
		Help:    help.New(),
		Keys: watchKeyMap{
			Clear: key.NewBinding(
				key.WithKeys("c"),
				key.WithHelp("c", "clear"),
			),
			Help: key.NewBinding(
				key.WithKeys("?"),
				key.WithHelp("?", "help"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
	}
}

// waitForMessage reads the next message off the stream
func waitForMessage(source <-chan discovery.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-source
		if !ok {
			return streamClosedMsg{}
		}
		return messageMsg(msg)
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, waitForMessage(m.source))
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		m.height = msg.Height
		m.Help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Clear):
			m.rows = make(map[protocol.DeviceID]DeviceRow)
		case key.Matches(msg, m.Keys.Help):
			m.Help.ShowAll = !m.Help.ShowAll
		}

	case spinner.TickMsg:
		if m.ended {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case messageMsg:
		m.apply(discovery.Message(msg))
		return m, waitForMessage(m.source)

	case streamClosedMsg:
		m.ended = true
	}

	return m, nil
}

func (m *WatchModel) apply(msg discovery.Message) {
	switch msg.Kind {
	case discovery.MessageReady:
		m.addrs = msg.Addrs
	case discovery.MessageBeacon:
		if msg.Beacon == nil {
			return
		}
		m.count++
		// maps are shared between model copies, so replace instead of mutating
		rows := make(map[protocol.DeviceID]DeviceRow, len(m.rows)+1)
		for id, r := range m.rows {
			rows[id] = r
		}
		rows[msg.Beacon.ID] = RowFromBeacon(msg.Beacon, msg.ReceivedAt)
		m.rows = rows
	}
}

// Rows returns the device rows ordered by name, then id
func (m WatchModel) Rows() []DeviceRow {
	rows := make([]DeviceRow, 0, len(m.rows))
	for _, r := range m.rows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})
	return rows
}

// Ended reports whether the stream was closed
func (m WatchModel) Ended() bool { return m.ended }

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(NewHeader(m.Title, "switcher watch").SetWidth(m.width).Render())
	b.WriteString("\n\n")

	var status string
	switch {
	case m.ended:
		status = ErrorMessageStyle.Render("stream ended")
	case len(m.addrs) > 0:
		status = m.Spinner.View() + " listening on " + strings.Join(m.addrs, ", ")
	default:
		status = m.Spinner.View() + " waiting for beacons"
	}
	status += fmt.Sprintf("  %d devices, %d beacons", len(m.rows), m.count)
	b.WriteString(StatusBarStyle.Render(status))
	b.WriteString("\n\n")

	b.WriteString(RenderDeviceTable(m.Rows(), m.width))
	b.WriteString("\n\n")
	b.WriteString(StatusBarStyle.Render(m.Help.View(m.Keys)))
	return b.String()
}

// RunWatch runs the watch screen until the user quits
func RunWatch(title string, source <-chan discovery.Message) error {
	p := tea.NewProgram(NewWatchModel(title, source), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
