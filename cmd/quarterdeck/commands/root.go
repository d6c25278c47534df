// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the quarterdeck command tree.
package commands

import (
	"fmt"
	"os"

	"github.com/quarterdeck-systems/quarterdeck/cmd/quarterdeck/cli"
	"github.com/quarterdeck-systems/quarterdeck/lib/version"
)

// Root returns the top-level quarterdeck command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "quarterdeck",
		Summary: "Operator console for cloud runners",
		Description: `Quarterdeck launches, inspects, and attaches to cloud runners
through the console API: provision a runner from a VM image, follow
the provisioning stages live, and drop into its terminal when the
connection comes up.`,
		Subcommands: []*cli.Command{
			runnerCommand(),
			connectorCommand(),
			imageCommand(),
			scriptCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print the quarterdeck version",
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			fmt.Fprintf(os.Stdout, "quarterdeck %s\n", version.Info())
			return nil
		},
	}
}
