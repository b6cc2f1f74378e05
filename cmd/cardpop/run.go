package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/tinytelemetry/cardpop/internal/backup"
	"github.com/tinytelemetry/cardpop/internal/broadcast"
	"github.com/tinytelemetry/cardpop/internal/deckstore"
	"github.com/tinytelemetry/cardpop/internal/history"
	"github.com/tinytelemetry/cardpop/internal/httpserver"
	"github.com/tinytelemetry/cardpop/internal/model"
	"github.com/tinytelemetry/cardpop/internal/prefs"
	"github.com/tinytelemetry/cardpop/internal/runner"
	"github.com/tinytelemetry/cardpop/internal/socketrpc"
	"github.com/tinytelemetry/cardpop/internal/surface"
	"github.com/tinytelemetry/cardpop/internal/tui"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(cfgFn configFunc) *cobra.Command {
	var (
		interval float64
		unit     string
		shuffle  bool
		headless bool
	)

	cmd := &cobra.Command{
		Use:   "run <deck>...",
		Short: "Pop up cards from one or more decks on a timer",
		Long: "Run cycles through the cards of the selected decks, showing one card per interval.\n" +
			"Decks are matched by id or name; several decks are merged into one run.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cfgFn()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.Interval = interval
			}
			if cmd.Flags().Changed("unit") {
				cfg.IntervalUnit = unit
			}
			if cmd.Flags().Changed("shuffle") {
				cfg.Shuffle = shuffle
			}
			if cmd.Flags().Changed("headless") {
				cfg.Headless = headless
			}
			settings, err := cfg.runSettings()
			if err != nil {
				return err
			}
			return runDecks(cfg, args, settings)
		},
	}
	cmd.Flags().Float64Var(&interval, "interval", defaultInterval, "time between cards")
	cmd.Flags().StringVar(&unit, "unit", string(defaultIntervalUnit), "interval unit: seconds|minutes|hours")
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "shuffle the cards before the run")
	cmd.Flags().BoolVar(&headless, "headless", false, "print cards to stdout instead of the popup desk")
	return cmd
}

// runDecks runs the selected decks until the runner stops, the desk quits or
// the process is signalled.
func runDecks(cfg appConfig, refs []string, settings model.RunSettings) error {
	headless := cfg.Headless || !isatty.IsTerminal(os.Stdout.Fd())

	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	bus := broadcast.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	decks, err := openDecks(ctx, cfg, bus)
	if err != nil {
		return err
	}
	defer decks.Close()

	deck, err := selectDecks(decks, refs)
	if err != nil {
		return err
	}
	if len(deck.Cards) == 0 {
		return fmt.Errorf("%s: %w", deck.Name, runner.ErrEmptyDeck)
	}

	preferences, err := prefs.Open(cfg.PreferencesFile, bus)
	if err != nil {
		return fmt.Errorf("failed to open preferences: %w", err)
	}
	defer preferences.Close()
	if cfg.ThemesFile != "" {
		themes, err := prefs.LoadThemesFile(cfg.ThemesFile)
		if err != nil {
			log.Printf("Warning: failed to load themes file: %v", err)
		} else {
			preferences.AddThemes(themes)
		}
	}
	theme := preferences.Current()
	if cfg.Theme != "" {
		theme = preferences.Theme(cfg.Theme)
	}

	// Apply presentations a previous run journaled but never committed.
	var recorder func(runner.Presentation)
	if cfg.HistoryEnabled {
		journal, err := history.Open(cfg.HistoryFile)
		if err != nil {
			return fmt.Errorf("failed to open history journal: %w", err)
		}
		defer journal.Close()
		n, err := history.ApplyPending(journal, decks)
		if err != nil {
			return fmt.Errorf("failed to replay history journal: %w", err)
		}
		if n > 0 {
			log.Printf("history: replayed %d uncommitted presentations", n)
		}
		recorder = history.NewRecorder(journal, decks).Record
	}

	backupManager, err := backup.NewManager(decks, backup.Config{
		Enabled:  cfg.BackupEnabled,
		Interval: cfg.BackupInterval,
		LocalDir: cfg.BackupDir,
		KeepLast: cfg.BackupKeepLast,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize backups: %w", err)
	}
	if backupManager != nil {
		defer backupManager.Stop()
	}

	registry := runner.NewRegistry()
	defer registry.StopCurrent()
	control := runner.NewControlChannel(bus, registry)
	control.Start()
	defer control.Stop()

	var windower surface.Windower
	var desk *tui.Desk
	if headless {
		windower = surface.NewConsole(os.Stdout)
	} else {
		desk = tui.NewDesk()
		windower = desk
	}

	var r *runner.DeckRunner
	r, err = runner.New(deck, settings, runner.Options{
		Windower:     windower,
		ReadyTimeout: cfg.ReadyTimeout,
		Recorder:     recorder,
		OnStopped: func() {
			registry.Release(r)
			cancel()
		},
	})
	if err != nil {
		return err
	}
	registry.Swap(r)

	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, decks, control)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	sockServer := socketrpc.NewServer(cfg.SocketPath, control)
	sockOK := true
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
		sockOK = false
	} else {
		defer sockServer.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		if headless {
			fmt.Println("\nStopping... (press Ctrl+C again to force)")
		}
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	if headless {
		printStartupBanner(cfg, deck, settings, sockOK)
	}

	g, gctx := errgroup.WithContext(ctx)

	if desk != nil {
		m := tui.NewDeskModel(control, theme, tui.WithThemeSource(preferences))
		g.Go(func() error {
			defer cancel()
			return tui.Run(gctx, m, desk)
		})
		g.Go(func() error {
			select {
			case <-desk.Attached():
			case <-gctx.Done():
				return nil
			}
			return r.Start(gctx)
		})
	} else {
		g.Go(func() error {
			return r.Start(gctx)
		})
	}

	// The runner schedules itself; wait until something cancels the run.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Printf("run: finished deck %q after %d presentations", deck.Name, r.Status().Shown)
	return nil
}

// selectDecks resolves refs to decks and merges them into one run deck.
func selectDecks(decks *deckstore.Collection, refs []string) (model.Deck, error) {
	selected := make([]model.Deck, 0, len(refs))
	for _, ref := range refs {
		d, err := decks.Find(ref)
		if err != nil {
			return model.Deck{}, err
		}
		selected = append(selected, d)
	}
	return model.MergeDecks(selected), nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "cardpop")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "cardpop.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, deck model.Deck, settings model.RunSettings, socketOK bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗╔═╗╦═╗╔╦╗╔═╗╔═╗╔═╗
    ║  ╠═╣╠╦╝ ║║╠═╝║ ║╠═╝
    ╚═╝╩ ╩╩╚══╩╝╩  ╚═╝╩  `)

	ver := dim.Render("v" + version)
	separator := dim.Render("    ─────────────────────────────────")

	var lines []string
	lines = append(lines, "", logo, "    "+ver, "", separator, "")

	lines = append(lines, bold.Render("    Run"), "")
	lines = append(lines, fmt.Sprintf("    %s  Deck           %s", check, cyan.Render(deck.Name)))
	lines = append(lines, fmt.Sprintf("    %s  Cards          %s", check, dim.Render(fmt.Sprint(len(deck.Cards)))))
	lines = append(lines, fmt.Sprintf("    %s  Schedule       %s", check, dim.Render(settings.String())))
	if settings.Shuffle {
		lines = append(lines, fmt.Sprintf("    %s  Shuffle        %s", check, dim.Render("on")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Shuffle        %s", dot, dim.Render("off")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Control"), "")
	if socketOK {
		lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", check, cyan.Render(shortenPath(cfg.SocketPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", dot, dim.Render("unavailable")))
	}
	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Storage"), "")
	lines = append(lines, fmt.Sprintf("    %s  Decks          %s", check, dim.Render(shortenPath(cfg.DecksFile))))
	if cfg.HistoryEnabled {
		lines = append(lines, fmt.Sprintf("    %s  History        %s", check, dim.Render(shortenPath(cfg.HistoryFile))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  History        %s", dot, dim.Render("disabled")))
	}
	if cfg.BackupEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Snapshots      %s", check, dim.Render(shortenPath(cfg.BackupDir))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Snapshots      %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Control with ")+yellow.Render("cardpop ctl pause|resume|stop")+dim.Render(", or press ")+yellow.Render("Ctrl+C"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
