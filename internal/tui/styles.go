// Package tui renders the structural audit in the terminal.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/terra-clan/humanarch/internal/models"
)

// Palette
var (
	darkForeground  = lipgloss.Color("#f2f2f2")
	darkMuted       = lipgloss.Color("#6b7a90")
	lightForeground = lipgloss.Color("#101f38")
	lightMuted      = lipgloss.Color("#8a94a3")

	accent   = lipgloss.Color("#c9a227")
	critical = lipgloss.Color("#e53935")
	stable   = lipgloss.Color("#8bc34a")
)

// Styles holds the lipgloss styles of one theme
type Styles struct {
	Title    lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Accent   lipgloss.Style
	Critical lipgloss.Style
	Stable   lipgloss.Style
	Error    lipgloss.Style
	Frame    lipgloss.Style
}

// NewStyles builds the styles for theme
func NewStyles(theme models.Theme) Styles {
	fg, muted := darkForeground, darkMuted
	if theme == models.ThemeLight {
		fg, muted = lightForeground, lightMuted
	}

	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1),
		Body:     lipgloss.NewStyle().Foreground(fg),
		Muted:    lipgloss.NewStyle().Foreground(muted),
		Accent:   lipgloss.NewStyle().Foreground(accent).Bold(true),
		Critical: lipgloss.NewStyle().Foreground(critical).Bold(true),
		Stable:   lipgloss.NewStyle().Foreground(stable),
		Error:    lipgloss.NewStyle().Foreground(critical),
		Frame:    lipgloss.NewStyle().Padding(1, 2),
	}
}
