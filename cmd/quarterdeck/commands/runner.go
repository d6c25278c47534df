// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/quarterdeck-systems/quarterdeck/cmd/quarterdeck/cli"
)

func runnerCommand() *cli.Command {
	return &cli.Command{
		Name:    "runner",
		Summary: "Launch, list, attach to, and delete runners",
		Subcommands: []*cli.Command{
			launchCommand(),
			attachCommand(),
			runnerListCommand(),
			runnerDeleteCommand(),
		},
	}
}

func runnerListCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "list",
		Summary: "List your runners",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to quarterdeck.yaml")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			sess, err := newSession(configPath, "runner/list")
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			runners, err := sess.client.ListRunners(ctx)
			if err != nil {
				return cli.Transient("listing runners: %w", err)
			}
			if len(runners) == 0 {
				fmt.Println("No runners.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATE\tIMAGE\tCONNECTOR\tAGE")
			now := time.Now()
			for _, runner := range runners {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					runner.ID, runner.Name, runner.State, runner.Image,
					runner.Connector, formatAge(now.Sub(runner.CreatedAt)))
			}
			return tw.Flush()
		},
	}
}

func runnerDeleteCommand() *cli.Command {
	var configPath string
	var yes bool
	return &cli.Command{
		Name:    "delete",
		Summary: "Terminate a runner and release its resources",
		Usage:   "quarterdeck runner delete <runner-id> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("delete", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to quarterdeck.yaml")
			flagSet.BoolVar(&yes, "yes", false, "skip the confirmation prompt")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("expected exactly one runner ID")
			}
			runnerID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return cli.Validation("invalid runner ID %q", args[0])
			}

			sess, err := newSession(configPath, "runner/delete")
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			if !yes {
				fmt.Printf("Delete runner %d? This terminates the instance. [y/N] ", runnerID)
				line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				answer := strings.ToLower(strings.TrimSpace(line))
				if answer != "y" && answer != "yes" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			if err := sess.client.DeleteRunner(ctx, runnerID); err != nil {
				return cli.Transient("%w", err)
			}
			fmt.Printf("Runner %d deleted.\n", runnerID)
			return nil
		},
	}
}

// formatAge renders a duration the way runner listings want it: the
// two most significant units, no fractions.
func formatAge(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(age.Hours()), int(age.Minutes())%60)
	default:
		return fmt.Sprintf("%dd%dh", int(age.Hours())/24, int(age.Hours())%24)
	}
}
