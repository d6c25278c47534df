// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/quarterdeck-systems/quarterdeck/cmd/quarterdeck/cli"
	"github.com/quarterdeck-systems/quarterdeck/lib/api"
	"github.com/quarterdeck-systems/quarterdeck/lib/clock"
	"github.com/quarterdeck-systems/quarterdeck/lib/config"
	"github.com/quarterdeck-systems/quarterdeck/provision"
	"github.com/quarterdeck-systems/quarterdeck/tui"
)

func launchCommand() *cli.Command {
	var configPath string
	var profileName string
	var connector, image, script, region string
	var attach bool

	return &cli.Command{
		Name:    "launch",
		Summary: "Provision a new runner and follow the launch live",
		Description: `Provision a new runner and follow the launch live.

The provisioning stages stream into a live view: one line per stage
with its status and elapsed time. When the connection comes up the
command prints the runner ID, or drops straight into its terminal
with --attach.

A --profile resolves to a named preset from the profiles file;
explicit --connector/--image/--script flags override the preset's
values.`,
		Examples: []cli.Example{
			{Description: "Launch from a profile and attach", Command: "quarterdeck runner launch --profile dev --attach"},
			{Description: "Launch with explicit settings", Command: "quarterdeck runner launch --connector aws-dev --image ubuntu-24.04-base"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("launch", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to quarterdeck.yaml")
			flagSet.StringVar(&profileName, "profile", "", "launch profile name")
			flagSet.StringVar(&connector, "connector", "", "cloud connector name")
			flagSet.StringVar(&image, "image", "", "VM image name")
			flagSet.StringVar(&script, "script", "", "setup script to run after provisioning")
			flagSet.StringVar(&region, "region", "", "override the connector's region")
			flagSet.BoolVar(&attach, "attach", false, "attach to the runner's terminal once ready")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			sess, err := newSession(configPath, "runner/launch")
			if err != nil {
				return err
			}

			request, err := resolveLaunchRequest(sess.cfg, profileName, connector, image, script, region)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			completion, err := runLaunch(sess, ctx, request)
			if err != nil {
				return err
			}
			if !completion.Succeeded {
				fmt.Fprintf(os.Stderr, "Launch failed: %s\n", completion.Message)
				return &cli.ExitError{Code: 1}
			}

			fmt.Printf("Runner %d is ready.\n", completion.RunnerID)
			if !attach {
				fmt.Printf("Attach with: quarterdeck runner attach %d\n", completion.RunnerID)
				return nil
			}
			return runAttach(ctx, sess, completion.RunnerID, attachOptions{
				transcriptPath: defaultTranscriptPath(sess.cfg, completion.RunnerID),
			})
		},
	}
}

// resolveLaunchRequest merges the profile (if named) with the
// explicit flags, flags winning.
func resolveLaunchRequest(cfg *config.Config, profileName, connector, image, script, region string) (api.LaunchRequest, error) {
	request := api.LaunchRequest{
		Connector: connector,
		Image:     image,
		Script:    script,
		Region:    region,
	}

	if profileName != "" {
		if cfg.Profiles == "" {
			return request, cli.Validation("--profile given but no profiles file configured (set 'profiles' in quarterdeck.yaml)")
		}
		profiles, err := config.ReadProfiles(cfg.Profiles)
		if err != nil {
			return request, cli.Validation("%w", err)
		}
		profile, err := config.FindProfile(profiles, profileName)
		if err != nil {
			return request, cli.NotFound("%w", err)
		}
		if request.Connector == "" {
			request.Connector = profile.Connector
		}
		if request.Image == "" {
			request.Image = profile.Image
		}
		if request.Script == "" {
			request.Script = profile.Script
		}
		if request.Region == "" {
			request.Region = profile.Region
		}
	}

	if request.Connector == "" {
		return request, cli.Validation("a connector is required (--connector or --profile)")
	}
	if request.Image == "" {
		return request, cli.Validation("an image is required (--image or --profile)")
	}
	return request, nil
}

// runLaunch starts provisioning, wires the status socket into a
// tracker, and drives the live view until the outcome is delivered.
func runLaunch(sess *session, ctx context.Context, request api.LaunchRequest) (provision.Completion, error) {
	ticket, err := sess.client.StartProvision(ctx, request)
	if err != nil {
		return provision.Completion{}, cli.Transient("%w", err)
	}
	socketURL, err := sess.client.ProvisionSocketURL(ticket.ProvisionToken)
	if err != nil {
		return provision.Completion{}, cli.Internal("%w", err)
	}

	completions := make(chan provision.Completion, 1)
	tracker := provision.NewTracker(clock.Real(), sess.logger, func(completion provision.Completion) {
		completions <- completion
	})

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	watchErrs := make(chan error, 1)
	go func() {
		watchErrs <- provision.Watch(watchCtx, socketURL, tracker, sess.logger)
	}()

	completion, err := tui.RunLaunch(tui.NewLaunchModel(tracker, completions, clock.Real()))
	cancelWatch()
	<-watchErrs

	if errors.Is(err, tui.ErrCanceled) {
		fmt.Fprintln(os.Stderr, "Launch view closed; provisioning may continue server-side.")
		return provision.Completion{}, &cli.ExitError{Code: 1}
	}
	if err != nil {
		return provision.Completion{}, cli.Internal("%w", err)
	}
	return completion, nil
}
