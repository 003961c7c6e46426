package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette. Each color has a light and a dark terminal variant.
var (
	PrimaryColor = lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#7D56F4"} // headers, borders
	SuccessColor = lipgloss.AdaptiveColor{Light: "#1E8A44", Dark: "#43BF6D"} // success, power on
	ErrorColor   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF5555"}
	WarningColor = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFA500"} // warnings, moving shutters
	MutedColor   = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#626262"} // secondary text, power off
	TextColor    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#FFFFFF"}
)

// Layout bounds
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
	DefaultPadding   = 2

	defaultTerminalHeight = 24
	resultKeyWidth        = 18
)

// fg returns a style with the given foreground
func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// Header
var (
	HeaderTitleStyle      = fg(TextColor).Bold(true).PaddingLeft(DefaultPadding)
	HeaderCommandStyle    = fg(MutedColor).PaddingLeft(DefaultPadding)
	HeaderParamKeyStyle   = fg(MutedColor).PaddingLeft(DefaultPadding)
	HeaderParamValueStyle = fg(TextColor)
)

// Result boxes
var (
	SuccessTitleStyle = fg(SuccessColor).Bold(true)
	ErrorTitleStyle   = fg(ErrorColor).Bold(true)
	WarningTitleStyle = fg(WarningColor).Bold(true)
	ErrorMessageStyle = fg(ErrorColor)

	ResultKeyStyle   = fg(MutedColor).Width(resultKeyWidth)
	ResultValueStyle = fg(TextColor)

	TroubleshootingTitleStyle = fg(MutedColor).Bold(true)
	TroubleshootingItemStyle  = fg(MutedColor)
)

// Device table and watch view
var (
	TableHeaderStyle = fg(PrimaryColor).Bold(true)
	OnStyle          = fg(SuccessColor)
	OffStyle         = fg(MutedColor)
	MovingStyle      = fg(WarningColor)
	SpinnerStyle     = fg(PrimaryColor)
	StatusBarStyle   = fg(MutedColor).PaddingLeft(DefaultPadding)
)

// Status markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	WarningMarker = "⚠"
)

// GetTerminalWidth returns the width of stdout clamped to the supported
// range. Redirected output gets MinTerminalWidth.
func GetTerminalWidth() int {
	width, _ := GetTerminalSize()
	return width
}

// GetTerminalSize returns the clamped width and the height of stdout
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, defaultTerminalHeight
	}
	return clampWidth(width), height
}

func clampWidth(width int) int {
	return max(MinTerminalWidth, min(width, MaxContentWidth))
}

// IsTerminal reports whether stdout is a terminal. The watch dashboard
// needs one.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// HeaderBorderStyle is the rounded frame of command headers
func HeaderBorderStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2)
}

// ResultBoxStyle is the double frame of result boxes
func ResultBoxStyle(width int, color lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, DefaultPadding)
}

// TroubleshootingBoxStyle frames the hints inside a failure box
func TroubleshootingBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(width-8).
		Padding(0, 1)
}

// RenderHorizontalDivider draws a line of char across width cells
func RenderHorizontalDivider(width int, char string) string {
	return fg(PrimaryColor).Render(strings.Repeat(char, width))
}
