package deckstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinytelemetry/cardpop/internal/model"
)

// ParseCardLines splits newline-delimited text into trimmed, non-blank lines.
func ParseCardLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// SingleLine folds content onto one line: each line is trimmed, blank lines
// are dropped and the rest are joined with a space. A card is one line of a
// text file, so card content never carries a line break.
func SingleLine(content string) string {
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.Join(ParseCardLines(content), " ")
}

// FormatCards joins card contents with newlines.
func FormatCards(cards []model.Card) string {
	lines := make([]string, len(cards))
	for i, c := range cards {
		lines[i] = SingleLine(c.Content)
	}
	return strings.Join(lines, "\n")
}

// DeckNameFromPath derives a deck name from a file's base name.
func DeckNameFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".txt")
	if strings.TrimSpace(name) == "" || name == "." || name == string(filepath.Separator) {
		return model.DefaultDeckName
	}
	return name
}

// ImportFromText creates a deck with one card per non-blank line of the file
// at path. On any failure no deck is created.
func (c *Collection) ImportFromText(path string) (model.Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Deck{}, fmt.Errorf("deckstore: import %s: %w", path, err)
	}

	now := c.now()
	lines := ParseCardLines(string(data))
	deck := model.Deck{
		ID:             c.newID(),
		Name:           DeckNameFromPath(path),
		Cards:          make([]model.Card, 0, len(lines)),
		CreatedAt:      now,
		LastModifiedAt: now,
		SourceFilePath: path,
	}
	for _, line := range lines {
		deck.Cards = append(deck.Cards, model.Card{
			ID:        c.newID(),
			Content:   line,
			CreatedAt: now,
		})
	}

	if err := c.insert(deck); err != nil {
		return model.Deck{}, err
	}
	return deck.Clone(), nil
}

// ExportToText writes the deck's card contents to path and records path on
// the stored deck. It returns the deck as it now stands.
func (c *Collection) ExportToText(deck model.Deck, path string) (model.Deck, error) {
	if err := os.WriteFile(path, []byte(FormatCards(deck.Cards)), defaultFileMode); err != nil {
		return model.Deck{}, fmt.Errorf("deckstore: export %s: %w", path, err)
	}
	updated := deck.Clone()
	updated.SourceFilePath = path
	if err := c.Update(updated); err != nil {
		return model.Deck{}, err
	}
	if stored, err := c.Get(deck.ID); err == nil {
		return stored, nil
	}
	return updated, nil
}

// SaveToFile rewrites the deck's associated text file and stores the deck.
func (c *Collection) SaveToFile(deck model.Deck) error {
	if deck.SourceFilePath == "" {
		return ErrNoFilePath
	}
	if err := os.WriteFile(deck.SourceFilePath, []byte(FormatCards(deck.Cards)), defaultFileMode); err != nil {
		return fmt.Errorf("deckstore: save %s: %w", deck.SourceFilePath, err)
	}
	return c.Update(deck)
}
