package runner

import (
	"math/rand/v2"

	"github.com/tinytelemetry/cardpop/internal/model"
)

// Rand is the random source used for shuffling.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// ShuffleCards returns a Fisher-Yates permutation of cards. The input slice
// is not modified.
func ShuffleCards(cards []model.Card, rnd Rand) []model.Card {
	if rnd == nil {
		rnd = globalRand{}
	}
	out := make([]model.Card, len(cards))
	copy(out, cards)
	for i := len(out) - 1; i > 0; i-- {
		j := rnd.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
