package tui

import "github.com/charmbracelet/lipgloss"

var (
	greenColor  = lipgloss.Color("#10B981")
	redColor    = lipgloss.Color("#EF4444")
	amberColor  = lipgloss.Color("#F59E0B")
	grayColor   = lipgloss.Color("#6B7280")
	purpleColor = lipgloss.Color("#7C3AED")
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(grayColor).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(purpleColor)

	connectedStyle    = lipgloss.NewStyle().Foreground(greenColor)
	connectingStyle   = lipgloss.NewStyle().Foreground(amberColor)
	disconnectedStyle = lipgloss.NewStyle().Foreground(redColor)

	bidStyle   = lipgloss.NewStyle().Foreground(greenColor)
	askStyle   = lipgloss.NewStyle().Foreground(redColor)
	ownStyle   = lipgloss.NewStyle().Bold(true).Foreground(amberColor)
	mutedStyle = lipgloss.NewStyle().Foreground(grayColor)

	profitStyle = lipgloss.NewStyle().Bold(true).Foreground(greenColor)
	lossStyle   = lipgloss.NewStyle().Bold(true).Foreground(redColor)
)
