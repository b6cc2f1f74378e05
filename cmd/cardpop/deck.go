package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tinytelemetry/cardpop/internal/deckstore"
	"github.com/tinytelemetry/cardpop/internal/model"
)

func newDeckCmd(cfgFn configFunc) *cobra.Command {
	deck := &cobra.Command{
		Use:   "deck",
		Short: "Manage flashcard decks",
		Long:  "Create, list, edit, import and export decks stored in the decks file",
	}

	withDecks := func(fn func(*deckstore.Collection) error) error {
		cfg, err := cfgFn()
		if err != nil {
			return err
		}
		decks, err := openDecks(context.Background(), cfg, nil)
		if err != nil {
			return err
		}
		defer decks.Close()
		return fn(decks)
	}

	deck.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List decks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDecks(func(c *deckstore.Collection) error {
				printDeckList(cmd.OutOrStdout(), c.List())
				return nil
			})
		},
	})

	deck.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty deck",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return withDecks(func(c *deckstore.Collection) error {
				d, err := c.Create(name)
				if err != nil {
					return fmt.Errorf("failed to create deck: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Created deck %s: %s\n", okMark(), shortID(d.ID), d.Name)
				return nil
			})
		},
	})

	deck.AddCommand(&cobra.Command{
		Use:   "delete <deck>",
		Short: "Delete a deck by id or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDecks(func(c *deckstore.Collection) error {
				d, err := c.Find(args[0])
				if err != nil {
					return err
				}
				if err := c.Delete(d.ID); err != nil {
					return fmt.Errorf("failed to delete deck: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted deck %s: %s\n", okMark(), shortID(d.ID), d.Name)
				return nil
			})
		},
	})

	var sortBy string
	showCmd := &cobra.Command{
		Use:   "show <deck>",
		Short: "Show the cards of a deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			by, err := model.ParseCardSort(sortBy)
			if err != nil {
				return err
			}
			return withDecks(func(c *deckstore.Collection) error {
				d, err := c.Find(args[0])
				if err != nil {
					return err
				}
				printDeck(cmd.OutOrStdout(), d, by)
				return nil
			})
		},
	}
	showCmd.Flags().StringVar(&sortBy, "sort", "date", "card order: alphabetical|date|length")
	deck.AddCommand(showCmd)

	deck.AddCommand(&cobra.Command{
		Use:   "import <file.txt>",
		Short: "Create a deck from a text file, one card per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDecks(func(c *deckstore.Collection) error {
				d, err := c.ImportFromText(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Imported %d cards into %s: %s\n", okMark(), len(d.Cards), shortID(d.ID), d.Name)
				return nil
			})
		},
	})

	deck.AddCommand(&cobra.Command{
		Use:   "export <deck> <file.txt>",
		Short: "Write a deck to a text file, one card per line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDecks(func(c *deckstore.Collection) error {
				d, err := c.Find(args[0])
				if err != nil {
					return err
				}
				if _, err := c.ExportToText(d, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %d cards to %s\n", okMark(), len(d.Cards), args[1])
				return nil
			})
		},
	})

	deck.AddCommand(&cobra.Command{
		Use:   "save <deck>",
		Short: "Rewrite the text file a deck was imported from or exported to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDecks(func(c *deckstore.Collection) error {
				d, err := c.Find(args[0])
				if err != nil {
					return err
				}
				if err := c.SaveToFile(d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %s\n", okMark(), d.SourceFilePath)
				return nil
			})
		},
	})

	deck.AddCommand(&cobra.Command{
		Use:   "add-card <deck> <content>",
		Short: "Append a card to a deck",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := deckstore.SingleLine(strings.Join(args[1:], " "))
			if content == "" {
				return fmt.Errorf("card content is empty")
			}
			return withDecks(func(c *deckstore.Collection) error {
				d, err := c.Find(args[0])
				if err != nil {
					return err
				}
				card := c.NewCard(content)
				d.Cards = append(d.Cards, card)
				if err := c.Update(d); err != nil {
					return fmt.Errorf("failed to add card: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Added card %s to %s\n", okMark(), shortID(card.ID), d.Name)
				return nil
			})
		},
	})

	deck.AddCommand(&cobra.Command{
		Use:   "rm-card <deck> <card>",
		Short: "Remove a card by id, id prefix or position (# in deck show)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDecks(func(c *deckstore.Collection) error {
				d, err := c.Find(args[0])
				if err != nil {
					return err
				}
				idx, err := resolveCard(d, args[1])
				if err != nil {
					return err
				}
				removed := d.Cards[idx]
				d.Cards = append(d.Cards[:idx], d.Cards[idx+1:]...)
				if err := c.Update(d); err != nil {
					return fmt.Errorf("failed to remove card: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Removed card %s from %s\n", okMark(), shortID(removed.ID), d.Name)
				return nil
			})
		},
	})

	return deck
}

// resolveCard finds a card by exact id, unique id prefix or 1-based position.
func resolveCard(d model.Deck, ref string) (int, error) {
	if i := d.CardIndex(ref); i >= 0 {
		return i, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(d.Cards) {
			return -1, fmt.Errorf("card position %d out of range (deck has %d cards)", n, len(d.Cards))
		}
		return n - 1, nil
	}
	found := -1
	for i, c := range d.Cards {
		if strings.HasPrefix(c.ID, ref) {
			if found >= 0 {
				return -1, fmt.Errorf("card id prefix %q is ambiguous", ref)
			}
			found = i
		}
	}
	if found < 0 {
		return -1, fmt.Errorf("no card %q in deck %s", ref, d.Name)
	}
	return found, nil
}

func printDeckList(out io.Writer, decks []model.Deck) {
	if len(decks) == 0 {
		fmt.Fprintln(out, "No decks. Create one with: cardpop deck create <name>")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCARDS\tMODIFIED\tFILE")
	for _, d := range decks {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			shortID(d.ID),
			color.New(color.Bold).Sprint(d.Name),
			len(d.Cards),
			d.LastModifiedAt.Local().Format("2006-01-02 15:04"),
			d.SourceFilePath,
		)
	}
	w.Flush()
}

func printDeck(out io.Writer, d model.Deck, by model.CardSort) {
	fmt.Fprintf(out, "%s  %s\n", color.New(color.Bold).Sprint(d.Name), color.New(color.Faint).Sprint(d.ID))
	if d.SourceFilePath != "" {
		fmt.Fprintf(out, "  File: %s\n", d.SourceFilePath)
	}
	if len(d.Cards) == 0 {
		fmt.Fprintln(out, "  (no cards)")
		return
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tCONTENT\tLAST SHOWN")
	for _, c := range model.SortCards(d.Cards, by) {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.CardIndex(c.ID)+1, shortID(c.ID), c.Content, lastShown(c.LastShownAt))
	}
	w.Flush()
}

func lastShown(t *time.Time) string {
	if t == nil {
		return color.New(color.Faint).Sprint("never")
	}
	return t.Local().Format("2006-01-02 15:04")
}

func okMark() string {
	return color.New(color.FgGreen).Sprint("✓")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
