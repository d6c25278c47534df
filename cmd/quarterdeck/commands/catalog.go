// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/quarterdeck-systems/quarterdeck/cmd/quarterdeck/cli"
)

func connectorCommand() *cli.Command {
	return &cli.Command{
		Name:    "connector",
		Summary: "Inspect cloud connectors",
		Subcommands: []*cli.Command{
			catalogListCommand("connector", "List the configured cloud connectors", "connector/list",
				func(sess *session) error {
					ctx, cancel := signalContext()
					defer cancel()
					connectors, err := sess.client.ListConnectors(ctx)
					if err != nil {
						return cli.Transient("listing connectors: %w", err)
					}
					if len(connectors) == 0 {
						fmt.Println("No connectors.")
						return nil
					}
					tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tPROVIDER\tREGION\tENABLED")
					for _, connector := range connectors {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n",
							connector.ID, connector.Name, connector.Provider,
							connector.Region, connector.Enabled)
					}
					return tw.Flush()
				}),
		},
	}
}

func imageCommand() *cli.Command {
	return &cli.Command{
		Name:    "image",
		Summary: "Inspect VM images",
		Subcommands: []*cli.Command{
			catalogListCommand("image", "List the VM images available for launching", "image/list",
				func(sess *session) error {
					ctx, cancel := signalContext()
					defer cancel()
					images, err := sess.client.ListImages(ctx)
					if err != nil {
						return cli.Transient("listing images: %w", err)
					}
					if len(images) == 0 {
						fmt.Println("No images.")
						return nil
					}
					tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tOS\tSIZE")
					for _, image := range images {
						size := "-"
						if image.SizeGB > 0 {
							size = fmt.Sprintf("%dGB", image.SizeGB)
						}
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", image.ID, image.Name, image.OS, size)
					}
					return tw.Flush()
				}),
		},
	}
}

func scriptCommand() *cli.Command {
	return &cli.Command{
		Name:    "script",
		Summary: "Inspect setup scripts",
		Subcommands: []*cli.Command{
			catalogListCommand("script", "List the setup scripts available at launch", "script/list",
				func(sess *session) error {
					ctx, cancel := signalContext()
					defer cancel()
					scripts, err := sess.client.ListScripts(ctx)
					if err != nil {
						return cli.Transient("listing scripts: %w", err)
					}
					if len(scripts) == 0 {
						fmt.Println("No scripts.")
						return nil
					}
					tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
					for _, script := range scripts {
						fmt.Fprintf(tw, "%d\t%s\t%s\n", script.ID, script.Name, script.Description)
					}
					return tw.Flush()
				}),
		},
	}
}

// catalogListCommand builds the shared shape of the read-only catalog
// listings: a "list" leaf with only a --config flag.
func catalogListCommand(resource, summary, commandName string, list func(*session) error) *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "list",
		Summary: summary,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(resource+"-list", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to quarterdeck.yaml")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			sess, err := newSession(configPath, commandName)
			if err != nil {
				return err
			}
			return list(sess)
		},
	}
}
