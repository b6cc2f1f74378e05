package model

import "time"

// Shared defaults used by the CLI and the runner.
const (
	DefaultInterval     = 5.0
	DefaultIntervalUnit = UnitMinutes
	DefaultReadyTimeout = 5 * time.Second
	DefaultTheme        = "dark"
	DefaultDeckName     = "New Deck"
)

// Broadcast topics shared between surfaces.
const (
	TopicDeckUpdated    = "deck-updated"
	TopicSelectedDecks  = "selected-decks"
	TopicCardContent    = "card-content"
	TopicRunnerCommand  = "deck-runner-command"
	TopicThemeChanged   = "theme-changed"
	TopicStoreUpdatePfx = "store-update:"
)

// StoreTopic returns the broadcast topic for a synced store id.
func StoreTopic(storeID string) string {
	return TopicStoreUpdatePfx + storeID
}
