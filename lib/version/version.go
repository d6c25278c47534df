// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build identity for Quarterdeck binaries.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is the release version, set at build time via
// -ldflags "-X .../lib/version.Version=v0.4.0". Development builds
// report "devel" plus the VCS revision when available.
var Version = "devel"

// Info returns a human-readable version string for --version output.
func Info() string {
	revision := vcsRevision()
	if revision == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, revision)
}

// vcsRevision returns the short VCS revision embedded by the Go
// toolchain, or empty when building outside a repository.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 12 {
			return setting.Value[:12]
		}
	}
	return ""
}
