// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quarterdeck-systems/quarterdeck/cmd/quarterdeck/cli"
	"github.com/quarterdeck-systems/quarterdeck/lib/api"
	"github.com/quarterdeck-systems/quarterdeck/lib/config"
)

// session bundles the loaded configuration, the console API client,
// and a scoped logger for one command invocation.
type session struct {
	cfg    *config.Config
	client *api.Client
	logger *slog.Logger
}

// newSession loads configuration (from --config or QUARTERDECK_CONFIG)
// and builds the console client. commandName scopes the logger.
func newSession(configPath, commandName string) (*session, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, cli.Validation("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration: %w", err)
	}

	token, err := cfg.ReadToken()
	if err != nil {
		return nil, cli.Validation("%w\n\nSave your console API token to %s", err, cfg.Console.TokenFile)
	}

	logger := cli.NewCommandLogger().With("command", commandName)

	client, err := api.NewClient(api.ClientConfig{
		BaseURL:    cfg.Console.URL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: cfg.DialTimeout() + 30*time.Second},
		Logger:     logger,
	})
	if err != nil {
		return nil, cli.Internal("building console client: %w", err)
	}

	return &session{cfg: cfg, client: client, logger: logger}, nil
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
