package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha, a subset
const (
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorBlue     lipgloss.Color = "#89b4fa"
	colorLavender lipgloss.Color = "#b4befe"
	colorMauve    lipgloss.Color = "#cba6f7"

	colorText     lipgloss.Color = "#cdd6f4"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorOverlay0 lipgloss.Color = "#6c7086"
	colorSurface1 lipgloss.Color = "#45475a"
	colorBase     lipgloss.Color = "#1e1e2e"
)

var (
	headerStyle     = lipgloss.NewStyle().Foreground(colorBase).Background(colorLavender).Bold(true)
	headerMetaStyle = lipgloss.NewStyle().Foreground(colorBase).Background(colorLavender)
	paneTitleStyle  = lipgloss.NewStyle().Foreground(colorMauve).Bold(true)
	textStyle       = lipgloss.NewStyle().Foreground(colorText)
	dimStyle        = lipgloss.NewStyle().Foreground(colorSubtext0)
	dividerStyle    = lipgloss.NewStyle().Foreground(colorSurface1)
	draggingStyle   = lipgloss.NewStyle().Foreground(colorPeach)
	questionStyle   = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	promptStyle     = lipgloss.NewStyle().Foreground(colorPeach).Bold(true)
	helpStyle       = lipgloss.NewStyle().Foreground(colorOverlay0)
	successStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	errorStyle      = lipgloss.NewStyle().Foreground(colorRed)
)
