package ui

import "github.com/charmbracelet/lipgloss"

// Palette: one lime accent on grays.
const (
	ColorLime     = "154"
	ColorLimeDim  = "106"
	ColorWhite    = "255"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"

	// Light-background variants.
	ColorGreen    = "28"
	ColorBlack    = "235"
	ColorMidGray  = "242"
	ColorLightDim = "250"
	ColorDarkRed  = "160"
	ColorOrange   = "166"
)

// Styles holds all UI styles.
type Styles struct {
	Header    lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Dim       lipgloss.Style
	Active    lipgloss.Style
	Label     lipgloss.Style
	Path      lipgloss.Style
	Border    lipgloss.Style
	Sparkline lipgloss.Style
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Active:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Path:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Border:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Sparkline: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLimeDim)),
	}
}

// LightStyles returns colored styles readable on a light background.
func LightStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorGreen)),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorOrange)),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkRed)),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLightDim)),
		Active:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorGreen)),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorMidGray)),
		Path:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBlack)),
		Border:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLightDim)),
		Sparkline: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, Success: plain, Warning: plain, Error: plain, Dim: plain,
		Active: plain, Label: plain, Path: plain, Border: plain, Sparkline: plain,
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

// ThemeStyles returns the styles for theme ("light" or "dark"). Unknown
// themes get the default palette.
func ThemeStyles(theme string, noColor bool) Styles {
	switch {
	case noColor:
		return NoColorStyles()
	case theme == "light":
		return LightStyles()
	default:
		return DefaultStyles()
	}
}
