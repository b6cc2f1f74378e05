package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Run drives the desk program until the user quits or ctx is cancelled.
// desk is attached for the lifetime of the program.
func Run(ctx context.Context, m *DeskModel, desk *Desk) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	desk.Attach(p)
	defer desk.Attach(nil)

	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
