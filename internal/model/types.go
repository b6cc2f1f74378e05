package model

import (
	"fmt"
	"time"
)

// Card is a single text flashcard. Content is read-only while a deck runs.
type Card struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"created"`
	LastShownAt *time.Time `json:"lastShown,omitempty"`
}

// Deck is an ordered collection of cards. Card order is the run order unless
// the run shuffles.
type Deck struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Cards          []Card    `json:"cards"`
	CreatedAt      time.Time `json:"created"`
	LastModifiedAt time.Time `json:"lastModified"`
	SourceFilePath string    `json:"filePath,omitempty"`
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (d Deck) Clone() Deck {
	out := d
	out.Cards = make([]Card, len(d.Cards))
	for i, c := range d.Cards {
		out.Cards[i] = c.clone()
	}
	return out
}

func (c Card) clone() Card {
	out := c
	if c.LastShownAt != nil {
		t := *c.LastShownAt
		out.LastShownAt = &t
	}
	return out
}

// Validate checks that card ids are unique within the deck.
func (d Deck) Validate() error {
	seen := make(map[string]struct{}, len(d.Cards))
	for _, c := range d.Cards {
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("deck %q: duplicate card id %q", d.Name, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

// CardIndex returns the position of the card with id, or -1.
func (d Deck) CardIndex(id string) int {
	for i, c := range d.Cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// MergeDecks combines several selected decks into one run deck. Cards keep
// their ids; the first occurrence of a duplicated id wins.
func MergeDecks(decks []Deck) Deck {
	if len(decks) == 1 {
		return decks[0].Clone()
	}
	merged := Deck{}
	seen := make(map[string]struct{})
	for i, d := range decks {
		if i == 0 {
			merged.ID = d.ID
			merged.Name = d.Name
			merged.CreatedAt = d.CreatedAt
		} else {
			merged.ID += "+" + d.ID
			merged.Name += " + " + d.Name
		}
		if d.LastModifiedAt.After(merged.LastModifiedAt) {
			merged.LastModifiedAt = d.LastModifiedAt
		}
		for _, c := range d.Cards {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			merged.Cards = append(merged.Cards, c.clone())
		}
	}
	return merged
}
