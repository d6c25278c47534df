// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"fmt"
	"time"
)

// Runner is a provisioned cloud runner as reported by the console.
type Runner struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Image     string    `json:"image"`
	Connector string    `json:"connector"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Connector is a configured cloud provider connection.
type Connector struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Region   string `json:"region"`
	Enabled  bool   `json:"enabled"`
}

// Image is a VM image available for launching runners.
type Image struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	OS     string `json:"os"`
	SizeGB int    `json:"size_gb,omitempty"`
}

// Script is a setup script that can run on a freshly provisioned
// runner.
type Script struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// LaunchRequest asks the console to provision a new runner.
type LaunchRequest struct {
	Connector string `json:"connector"`
	Image     string `json:"image"`
	Script    string `json:"script,omitempty"`
	Region    string `json:"region,omitempty"`
}

// ProvisionTicket is the console's answer to a launch request: the
// correlation token that scopes the provisioning status stream to
// this launch.
type ProvisionTicket struct {
	ProvisionToken string `json:"provision_token"`
}

// APIError is the console's error response shape, carried for every
// non-2xx status.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("console API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("console API error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether the error is a 404 from the console.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
