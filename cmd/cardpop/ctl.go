package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tinytelemetry/cardpop/internal/model"
	"github.com/tinytelemetry/cardpop/internal/socketrpc"
)

func newCtlCmd(cfgFn configFunc) *cobra.Command {
	var socketPath string

	ctl := &cobra.Command{
		Use:   "ctl",
		Short: "Control the running deck runner",
		Long:  "Send pause, resume and stop to a running `cardpop run` over its unix socket",
	}
	ctl.PersistentFlags().StringVar(&socketPath, "socket", "", "override socket path of the running cardpop")

	dial := func() (*socketrpc.Client, error) {
		cfg, err := cfgFn()
		if err != nil {
			return nil, err
		}
		if socketPath != "" {
			cfg.SocketPath = socketPath
		}
		client, err := socketrpc.Dial(cfg.SocketPath)
		if err != nil {
			return nil, fmt.Errorf("cannot connect to cardpop at %s: %w\nIs a deck running? Start one with: cardpop run <deck>", cfg.SocketPath, err)
		}
		return client, nil
	}

	for _, cmd := range []model.RunnerCommand{model.CommandPause, model.CommandResume, model.CommandStop} {
		ctl.AddCommand(&cobra.Command{
			Use:   string(cmd),
			Short: fmt.Sprintf("Send %s to the current runner", cmd),
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				client, err := dial()
				if err != nil {
					return err
				}
				defer client.Close()
				st, err := client.Send(cmd)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "%s Sent %s\n", okMark(), cmd)
				printStatus(c.OutOrStdout(), st)
				return nil
			},
		})
	}

	ctl.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current runner",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			client, err := dial()
			if err != nil {
				return err
			}
			defer client.Close()
			st, err := client.Status()
			if err != nil {
				return err
			}
			printStatus(c.OutOrStdout(), st)
			return nil
		},
	})

	return ctl
}

func printStatus(out io.Writer, st model.RunnerStatus) {
	if st.DeckName == "" && !st.Active {
		fmt.Fprintln(out, "No deck running")
		return
	}
	fmt.Fprintf(out, "  Deck:     %s\n", color.New(color.Bold).Sprint(st.DeckName))
	fmt.Fprintf(out, "  State:    %s\n", stateLabel(st.State))
	if st.Active {
		fmt.Fprintf(out, "  Next:     %d/%d\n", st.Position, st.Total)
	}
	if st.Interval > 0 {
		fmt.Fprintf(out, "  Interval: %s\n", st.Interval)
	}
	fmt.Fprintf(out, "  Shown:    %d\n", st.Shown)
}

func stateLabel(s model.RunnerState) string {
	switch s {
	case model.StateRunning:
		return color.New(color.FgGreen).Sprint(s)
	case model.StatePaused:
		return color.New(color.FgYellow).Sprint(s)
	case model.StateStopped:
		return color.New(color.FgRed).Sprint(s)
	default:
		return string(s)
	}
}
