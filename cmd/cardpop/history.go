package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tinytelemetry/cardpop/internal/history"
	"github.com/tinytelemetry/cardpop/internal/model"
)

// shownCard is one card with the deck it belongs to.
type shownCard struct {
	deck string
	card model.Card
}

func newHistoryCmd(cfgFn configFunc) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recently presented cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cfgFn()
			if err != nil {
				return err
			}
			decks, err := openDecks(context.Background(), cfg, nil)
			if err != nil {
				return err
			}
			defer decks.Close()

			if cfg.HistoryEnabled {
				journal, err := history.Open(cfg.HistoryFile)
				if err != nil {
					return fmt.Errorf("failed to open history journal: %w", err)
				}
				defer journal.Close()
				if _, err := history.ApplyPending(journal, decks); err != nil {
					return fmt.Errorf("failed to replay history journal: %w", err)
				}
			}

			printHistory(cmd.OutOrStdout(), recentlyShown(decks.List(), limit))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of cards to show (0 for all)")
	return cmd
}

// recentlyShown returns shown cards, most recent first.
func recentlyShown(decks []model.Deck, limit int) []shownCard {
	var out []shownCard
	for _, d := range decks {
		for _, c := range d.Cards {
			if c.LastShownAt != nil {
				out = append(out, shownCard{deck: d.Name, card: c})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].card.LastShownAt.After(*out[j].card.LastShownAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func printHistory(out io.Writer, shown []shownCard) {
	if len(shown) == 0 {
		fmt.Fprintln(out, "No cards shown yet")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SHOWN\tDECK\tCARD")
	for _, s := range shown {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.card.LastShownAt.Local().Format(time.DateTime), s.deck, s.card.Content)
	}
	w.Flush()
}
