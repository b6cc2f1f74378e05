package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/tinytelemetry/cardpop/internal/prefs"
)

func newThemeCmd(cfgFn configFunc) *cobra.Command {
	theme := &cobra.Command{Use: "theme", Short: "List and select colour themes"}

	openPrefs := func() (*prefs.Store, error) {
		cfg, err := cfgFn()
		if err != nil {
			return nil, err
		}
		store, err := prefs.Open(cfg.PreferencesFile, nil)
		if err != nil {
			return nil, err
		}
		if cfg.ThemesFile != "" {
			themes, err := prefs.LoadThemesFile(cfg.ThemesFile)
			if err != nil {
				store.Close()
				return nil, err
			}
			store.AddThemes(themes)
		}
		return store, nil
	}

	theme.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			defer store.Close()

			current := store.Current().ID
			for _, t := range store.Themes() {
				marker := " "
				if t.ID == current {
					marker = okMark()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-14s %s %s\n", marker, t.ID, swatch(t), t.Name)
			}
			return nil
		},
	})

	theme.AddCommand(&cobra.Command{
		Use:   "set <id>",
		Short: "Select the active theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPrefs()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SetTheme(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Theme set to %s\n", okMark(), store.Current().Name)
			return nil
		},
	})

	return theme
}

// swatch renders a theme's primary, accent and background colours.
func swatch(t prefs.Theme) string {
	block := func(hex string) string {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("██")
	}
	return block(t.Colors.Primary) + block(t.Colors.Accent) + block(t.Colors.Background)
}
