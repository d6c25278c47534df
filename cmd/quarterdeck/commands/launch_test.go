// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quarterdeck-systems/quarterdeck/lib/config"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.jsonc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing profiles: %v", err)
	}
	return path
}

func TestResolveLaunchRequestFromProfile(t *testing.T) {
	cfg := config.Default()
	cfg.Profiles = writeProfiles(t, `[
		// Everyday development box.
		{"name": "dev", "connector": "aws-dev", "image": "ubuntu-24.04-base", "script": "install-toolchain"},
	]`)

	request, err := resolveLaunchRequest(cfg, "dev", "", "", "", "")
	if err != nil {
		t.Fatalf("resolveLaunchRequest: %v", err)
	}
	if request.Connector != "aws-dev" || request.Image != "ubuntu-24.04-base" || request.Script != "install-toolchain" {
		t.Errorf("request = %+v", request)
	}
}

func TestResolveLaunchRequestFlagsOverrideProfile(t *testing.T) {
	cfg := config.Default()
	cfg.Profiles = writeProfiles(t, `[{"name": "dev", "connector": "aws-dev", "image": "ubuntu-24.04-base"}]`)

	request, err := resolveLaunchRequest(cfg, "dev", "", "cuda-12", "", "us-east-1")
	if err != nil {
		t.Fatalf("resolveLaunchRequest: %v", err)
	}
	if request.Image != "cuda-12" {
		t.Errorf("image = %q, want flag override", request.Image)
	}
	if request.Connector != "aws-dev" {
		t.Errorf("connector = %q, want profile value", request.Connector)
	}
	if request.Region != "us-east-1" {
		t.Errorf("region = %q", request.Region)
	}
}

func TestResolveLaunchRequestRequiresConnectorAndImage(t *testing.T) {
	cfg := config.Default()

	if _, err := resolveLaunchRequest(cfg, "", "", "ubuntu", "", ""); err == nil {
		t.Error("accepted a request without a connector")
	}
	if _, err := resolveLaunchRequest(cfg, "", "aws-dev", "", "", ""); err == nil {
		t.Error("accepted a request without an image")
	}
	if _, err := resolveLaunchRequest(cfg, "missing", "", "", "", ""); err == nil ||
		!strings.Contains(err.Error(), "profiles file") {
		t.Errorf("profile without a profiles file: %v", err)
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{90 * time.Minute, "1h30m"},
		{49 * time.Hour, "2d1h"},
		{-time.Minute, "0s"},
	}
	for _, test := range tests {
		if got := formatAge(test.age); got != test.want {
			t.Errorf("formatAge(%v) = %q, want %q", test.age, got, test.want)
		}
	}
}
