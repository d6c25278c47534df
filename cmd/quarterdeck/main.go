// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

// quarterdeck is the operator console client for cloud runners:
// launch runners from VM images, follow provisioning live, attach to
// runner terminals, and manage the launch catalog.
package main

import (
	"fmt"
	"os"

	"github.com/quarterdeck-systems/quarterdeck/cmd/quarterdeck/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that already printed their own output return an
		// ExitError; don't add a redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
