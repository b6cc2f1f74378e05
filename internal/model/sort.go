package model

import (
	"fmt"
	"sort"
	"strings"
)

// CardSort selects an editor ordering for card listings.
type CardSort string

const (
	SortAlphabetical CardSort = "alphabetical"
	SortDate         CardSort = "date"
	SortLength       CardSort = "length"
)

// ParseCardSort maps a flag value to a CardSort. Empty means date.
func ParseCardSort(s string) (CardSort, error) {
	switch CardSort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortDate:
		return SortDate, nil
	case SortAlphabetical:
		return SortAlphabetical, nil
	case SortLength:
		return SortLength, nil
	}
	return "", fmt.Errorf("unknown sort %q (want alphabetical, date or length)", s)
}

// SortCards returns a sorted copy of cards:
//   - alphabetical: case-insensitive on trimmed content, empty cards last
//   - date: most recently created first
//   - length: longest trimmed content first
func SortCards(cards []Card, by CardSort) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)

	switch by {
	case SortAlphabetical:
		sort.SliceStable(out, func(i, j int) bool {
			a := strings.ToLower(strings.TrimSpace(out[i].Content))
			b := strings.ToLower(strings.TrimSpace(out[j].Content))
			if a == "" || b == "" {
				return b == "" && a != ""
			}
			return a < b
		})
	case SortDate:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	case SortLength:
		sort.SliceStable(out, func(i, j int) bool {
			return len(strings.TrimSpace(out[i].Content)) > len(strings.TrimSpace(out[j].Content))
		})
	}
	return out
}
