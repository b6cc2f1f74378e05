package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tinytelemetry/cardpop/internal/deckstore"
	"github.com/tinytelemetry/cardpop/internal/syncstore"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

const loadTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "cardpop",
		Short:         "Flashcards that pop up on a timer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/cardpop/config.yml)")

	cfgFn := func() (appConfig, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return cfg, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(newDeckCmd(cfgFn))
	root.AddCommand(newRunCmd(cfgFn))
	root.AddCommand(newCtlCmd(cfgFn))
	root.AddCommand(newThemeCmd(cfgFn))
	root.AddCommand(newHistoryCmd(cfgFn))
	root.AddCommand(newVersionCmd())
	return root
}

type configFunc func() (appConfig, error)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cardpop - Flashcard Popups\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
			fmt.Fprintf(out, "  Go version: %s\n", goVersion)
		},
	}
}

// openDecks opens the deck collection and waits for it to load.
func openDecks(ctx context.Context, cfg appConfig, bus syncstore.Broadcaster) (*deckstore.Collection, error) {
	decks := deckstore.Open(cfg.DecksFile, bus)
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err := decks.WaitForReady(ctx); err != nil {
		decks.Close()
		return nil, fmt.Errorf("loading decks from %s: %w", cfg.DecksFile, err)
	}
	return decks, nil
}
