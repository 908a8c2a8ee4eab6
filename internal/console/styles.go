package console

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zombor/walkingpad-tracker/internal/status"
)

var (
	text     = lipgloss.Color("#cdd6f4")
	subtext  = lipgloss.Color("#a6adc8")
	surface  = lipgloss.Color("#45475a")
	sapphire = lipgloss.Color("#74c7ec")
	green    = lipgloss.Color("#a6e3a1")
	red      = lipgloss.Color("#f38ba8")
	yellow   = lipgloss.Color("#f9e2af")
	peach    = lipgloss.Color("#fab387")

	appStyle = lipgloss.NewStyle().Foreground(text).Padding(1, 2)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(surface).
			Padding(0, 1)

	titleStyle  = lipgloss.NewStyle().Foreground(sapphire).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(subtext)
	hotStyle    = lipgloss.NewStyle().Foreground(peach).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(subtext).Underline(true)
)

var statusStyles = map[status.Kind]lipgloss.Style{
	status.KindInfo:       lipgloss.NewStyle().Foreground(text),
	status.KindSuccess:    lipgloss.NewStyle().Foreground(green),
	status.KindError:      lipgloss.NewStyle().Foreground(red),
	status.KindProcessing: lipgloss.NewStyle().Foreground(yellow),
}

func statusStyle(kind status.Kind) lipgloss.Style {
	if s, ok := statusStyles[kind]; ok {
		return s
	}
	return statusStyles[status.KindInfo]
}
