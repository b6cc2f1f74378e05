package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// renderWaitingPlaceholder renders the idle desk between cards.
// The frame is selected based on the current time so it animates on re-render.
func renderWaitingPlaceholder(styles Styles, text string, width, height int) string {
	frame := spinnerFrames[time.Now().UnixMilli()/120%int64(len(spinnerFrames))]

	waitingStyle := styles.Muted.
		Italic(true)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, waitingStyle.Render(frame+" "+text))
}
