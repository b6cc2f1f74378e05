package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/cardpop/internal/model"
)

const (
	// Terminal cells standing in for the 400x300 popup.
	cardWidth  = 48
	cardHeight = 12
)

// View renders the desk.
func (m *DeskModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Initializing desk..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	var body string
	if pv := m.topPopup(); pv != nil {
		body = lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, m.renderCard(pv))
	} else {
		body = renderWaitingPlaceholder(m.styles, m.waitingText(), m.width, bodyHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// renderHeader renders the brand and the runner status line.
func (m *DeskModel) renderHeader() string {
	brand := m.styles.Brand.Render("cardpop")
	st := m.status

	var parts []string
	if st.DeckName != "" {
		parts = append(parts, st.DeckName)
	}
	if st.State != "" {
		parts = append(parts, string(st.State))
	}
	if st.Active && st.Total > 0 {
		parts = append(parts, fmt.Sprintf("next %d/%d", st.Position, st.Total))
	}
	if st.Interval > 0 {
		parts = append(parts, "every "+st.Interval.String())
	}
	if st.Shown > 0 {
		parts = append(parts, fmt.Sprintf("%d shown", st.Shown))
	}

	line := brand
	if len(parts) > 0 {
		line += " " + m.styles.Muted.Render(strings.Join(parts, " · "))
	}
	return m.styles.Status.Width(m.width).Render(line)
}

// renderFooter renders the last error, if any, and the key help.
func (m *DeskModel) renderFooter() string {
	helpView := m.help.View(m.keys)
	if m.lastErr == "" {
		return helpView
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.styles.Error.Render(m.lastErr), helpView)
}

// renderCard renders one popup as a bordered card.
func (m *DeskModel) renderCard(pv *popupView) string {
	title := pv.popup.opts.Title
	if title == "" {
		title = "Flashcard"
	}

	head := m.styles.Title.Render(title)
	if pv.hasCard {
		head += "  " + m.styles.Position.Render(fmt.Sprintf("%d/%d", pv.card.Current, pv.card.Total))
	}

	content := m.styles.Muted.Render("…")
	if pv.hasCard {
		content = m.styles.Content.Width(cardWidth - 6).Render(pv.card.Content)
	}

	inner := lipgloss.JoinVertical(lipgloss.Left, head, "", content)
	return m.styles.Card.
		Width(cardWidth).
		Height(cardHeight).
		Render(inner)
}

func (m *DeskModel) waitingText() string {
	switch m.status.State {
	case model.StatePaused:
		return "Paused. Press r to resume."
	case model.StateRunning:
		return "Waiting for the next card..."
	case model.StateStopped:
		return "Run stopped."
	default:
		return "No deck running."
	}
}
