package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/cardpop/internal/prefs"
)

// Styles are the lipgloss styles derived from a theme.
type Styles struct {
	Brand    lipgloss.Style
	Status   lipgloss.Style
	Card     lipgloss.Style
	Title    lipgloss.Style
	Position lipgloss.Style
	Content  lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Accent   lipgloss.Style
}

// NewStyles builds styles from a theme palette.
func NewStyles(t prefs.Theme) Styles {
	c := t.Colors
	return Styles{
		Brand: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Primary)).
			Bold(true),
		Status: lipgloss.NewStyle().
			Background(lipgloss.Color(c.Surface)).
			Foreground(lipgloss.Color(c.Text)),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(c.Primary)).
			Background(lipgloss.Color(c.Background)).
			Foreground(lipgloss.Color(c.Text)).
			Padding(1, 2),
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Primary)).
			Bold(true),
		Position: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Accent)),
		Content: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Text)),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.TextSecondary)),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Error)).
			Bold(true),
		Accent: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Accent)),
	}
}
