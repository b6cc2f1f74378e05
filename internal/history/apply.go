package history

import (
	"log"

	"github.com/tinytelemetry/cardpop/internal/deckstore"
	"github.com/tinytelemetry/cardpop/internal/runner"
)

// Marker applies presentation marks to decks.
type Marker interface {
	MarkShown(marks []deckstore.ShownMark) error
}

// ApplyPending replays uncommitted entries into m in one write and commits
// them. It returns the number of entries applied.
func ApplyPending(j *Journal, m Marker) (int, error) {
	pending, err := j.Pending()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	marks := make([]deckstore.ShownMark, 0, len(pending))
	for _, e := range pending {
		marks = append(marks, deckstore.ShownMark{DeckID: e.DeckID, CardID: e.CardID, At: e.ShownAt})
	}
	if err := m.MarkShown(marks); err != nil {
		return 0, err
	}
	if err := j.Commit(pending[len(pending)-1].Seq); err != nil {
		return 0, err
	}
	return len(pending), nil
}

// Recorder journals runner presentations and applies them to the decks.
// An entry that fails to apply stays uncommitted and is picked up by the
// next ApplyPending.
type Recorder struct {
	journal *Journal
	marker  Marker
}

// NewRecorder creates a recorder writing to j and applying to m.
func NewRecorder(j *Journal, m Marker) *Recorder {
	return &Recorder{journal: j, marker: m}
}

// Record is a runner.Options.Recorder.
func (r *Recorder) Record(p runner.Presentation) {
	seq, err := r.journal.Append(p.DeckID, p.CardID, p.At)
	if err != nil {
		log.Printf("history: append: %v", err)
		return
	}
	mark := deckstore.ShownMark{DeckID: p.DeckID, CardID: p.CardID, At: p.At}
	if err := r.marker.MarkShown([]deckstore.ShownMark{mark}); err != nil {
		log.Printf("history: mark shown %s/%s: %v", p.DeckID, p.CardID, err)
		return
	}
	if err := r.journal.Commit(seq); err != nil {
		log.Printf("history: commit %d: %v", seq, err)
	}
}
