// Package styles holds the lipgloss styles for human-facing terminal reports.
// Nothing styled here may be written to stdout while the MCP server is running.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme represents a color theme
type Theme struct {
	Name    string
	Primary lipgloss.AdaptiveColor
	Text    lipgloss.AdaptiveColor
	TextDim lipgloss.AdaptiveColor
	Border  lipgloss.AdaptiveColor
	Success lipgloss.AdaptiveColor
	Warning lipgloss.AdaptiveColor
	Error   lipgloss.AdaptiveColor
}

// DefaultTheme is used unless NO_COLOR strips colors entirely
var DefaultTheme = Theme{
	Name:    "default",
	Primary: lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7B68EE"},
	Text:    lipgloss.AdaptiveColor{Light: "#1E1E1E", Dark: "#E0E0E0"},
	TextDim: lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"},
	Border:  lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#404040"},
	Success: lipgloss.AdaptiveColor{Light: "#4CAF50", Dark: "#66BB6A"},
	Warning: lipgloss.AdaptiveColor{Light: "#FF9800", Dark: "#FFA726"},
	Error:   lipgloss.AdaptiveColor{Light: "#F44336", Dark: "#EF5350"},
}

// Styles holds the report styles
type Styles struct {
	Theme Theme

	Title   lipgloss.Style
	Label   lipgloss.Style
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Skip    lipgloss.Style
	Detail  lipgloss.Style
	Summary lipgloss.Style
}

// NewStyles creates a new styles instance with the given theme
func NewStyles(theme Theme) *Styles {
	s := &Styles{Theme: theme}

	s.Title = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		MarginBottom(1)

	s.Label = lipgloss.NewStyle().
		Foreground(theme.Text).
		Width(28)

	s.Pass = lipgloss.NewStyle().
		Foreground(theme.Success).
		Bold(true)

	s.Fail = lipgloss.NewStyle().
		Foreground(theme.Error).
		Bold(true)

	s.Skip = lipgloss.NewStyle().
		Foreground(theme.Warning)

	s.Detail = lipgloss.NewStyle().
		Foreground(theme.TextDim).
		PaddingLeft(2)

	s.Summary = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1).
		MarginTop(1)

	return s
}

// Default returns styles for DefaultTheme
func Default() *Styles {
	return NewStyles(DefaultTheme)
}
