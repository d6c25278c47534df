// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quarterdeck.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFileAppliesEnvironmentOverrides(t *testing.T) {
	path := writeTempConfig(t, `
environment: staging
console:
  url: https://console.dev.example.com
  dial_timeout: 10s
staging:
  console:
    url: https://console.staging.example.com
production:
  console:
    url: https://console.example.com
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Console.URL != "https://console.staging.example.com" {
		t.Errorf("console.url = %q, want staging override", cfg.Console.URL)
	}
	// Base value survives where the override section is silent.
	if cfg.Console.DialTimeout != "10s" {
		t.Errorf("console.dial_timeout = %q, want 10s", cfg.Console.DialTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if got := cfg.DialTimeout(); got != 10*time.Second {
		t.Errorf("DialTimeout() = %v", got)
	}
}

func TestLoadFileExpandsHomeVariable(t *testing.T) {
	t.Setenv("HOME", "/home/operator")
	path := writeTempConfig(t, `
environment: development
console:
  url: https://console.dev.example.com
  token_file: ${HOME}/.config/quarterdeck/token
transcripts:
  dir: ${HOME}/transcripts
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Console.TokenFile != "/home/operator/.config/quarterdeck/token" {
		t.Errorf("token_file = %q", cfg.Console.TokenFile)
	}
	if cfg.Transcripts.Dir != "/home/operator/transcripts" {
		t.Errorf("transcripts.dir = %q", cfg.Transcripts.Dir)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := Default()
	cfg.Environment = "laptop"
	cfg.Console.URL = ""
	cfg.Console.DialTimeout = "soon"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted a bad config")
	}
	for _, want := range []string{"invalid environment", "console.url", "dial_timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate error %q missing %q", err, want)
		}
	}
}

func TestLoadRequiresEnvironmentVariable(t *testing.T) {
	t.Setenv("QUARTERDECK_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without QUARTERDECK_CONFIG")
	}
}

func TestReadToken(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenPath, []byte("  qd-secret-token\n"), 0o600); err != nil {
		t.Fatalf("writing token: %v", err)
	}
	cfg := Default()
	cfg.Console.TokenFile = tokenPath

	token, err := cfg.ReadToken()
	if err != nil {
		t.Fatalf("ReadToken: %v", err)
	}
	if token != "qd-secret-token" {
		t.Errorf("token = %q", token)
	}

	if err := os.WriteFile(tokenPath, []byte("\n"), 0o600); err != nil {
		t.Fatalf("writing token: %v", err)
	}
	if _, err := cfg.ReadToken(); err == nil {
		t.Error("ReadToken accepted an empty token file")
	}
}

func TestParseProfilesJSONC(t *testing.T) {
	profiles, err := ParseProfiles([]byte(`
[
  // Everyday development box.
  {
    "name": "dev",
    "connector": "aws-dev",
    "image": "ubuntu-24.04-base",
    "script": "install-toolchain",
  },
  {
    "name": "gpu",
    "connector": "aws-dev",
    "image": "cuda-12",
    "region": "us-east-1",
  },
]
`))
	if err != nil {
		t.Fatalf("ParseProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("got %d profiles, want 2", len(profiles))
	}

	profile, err := FindProfile(profiles, "gpu")
	if err != nil {
		t.Fatalf("FindProfile: %v", err)
	}
	if profile.Image != "cuda-12" || profile.Region != "us-east-1" {
		t.Errorf("gpu profile = %+v", profile)
	}

	if _, err := FindProfile(profiles, "missing"); err == nil {
		t.Error("FindProfile found a nonexistent profile")
	}
}

func TestParseProfilesRejectsDuplicates(t *testing.T) {
	_, err := ParseProfiles([]byte(`[{"name":"dev"},{"name":"dev"}]`))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("ParseProfiles error = %v, want duplicate", err)
	}
}
