// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates a structured logger for command
// operations. When stderr is a terminal it uses slog.TextHandler for
// human-readable output; when piped or redirected it switches to
// slog.JSONHandler for machine-parseable output.
//
// Callers scope the logger with command context via With():
//
//	logger := cli.NewCommandLogger().With("command", "runner/launch")
func NewCommandLogger() *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
