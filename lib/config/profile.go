// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Profile is a named launch preset: the connector, image, and setup
// script that `runner launch --profile NAME` resolves to. Profiles
// are authored on disk as JSONC (JSON extended with // comments,
// /* block comments */, and trailing commas).
type Profile struct {
	// Name identifies the profile on the command line. Required.
	Name string `json:"name"`

	// Connector selects the cloud connector to launch through.
	Connector string `json:"connector"`

	// Image is the VM image name.
	Image string `json:"image"`

	// Script is an optional setup script to run after provisioning.
	Script string `json:"script,omitempty"`

	// Region overrides the connector's default region.
	Region string `json:"region,omitempty"`
}

// ParseProfiles strips JSONC comments and trailing commas from data,
// then unmarshals the profile list.
func ParseProfiles(data []byte) ([]Profile, error) {
	stripped := jsonc.ToJSON(data)

	var profiles []Profile
	if err := json.Unmarshal(stripped, &profiles); err != nil {
		return nil, fmt.Errorf("parsing profiles: %w", err)
	}

	seen := make(map[string]bool, len(profiles))
	for i, profile := range profiles {
		if profile.Name == "" {
			return nil, fmt.Errorf("profile %d has no name", i)
		}
		if seen[profile.Name] {
			return nil, fmt.Errorf("duplicate profile %q", profile.Name)
		}
		seen[profile.Name] = true
	}
	return profiles, nil
}

// ReadProfiles reads and parses a JSONC profile file from disk.
func ReadProfiles(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	profiles, err := ParseProfiles(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return profiles, nil
}

// FindProfile returns the profile with the given name.
func FindProfile(profiles []Profile, name string) (Profile, error) {
	for _, profile := range profiles {
		if profile.Name == name {
			return profile, nil
		}
	}
	return Profile{}, fmt.Errorf("no profile named %q", name)
}
