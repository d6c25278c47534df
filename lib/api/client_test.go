// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		Token:   "qd-test-token",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestStartProvision(t *testing.T) {
	var captured LaunchRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/runners" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer qd-test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("request has no X-Request-ID")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode launch request: %v", err)
		}
		json.NewEncoder(w).Encode(ProvisionTicket{ProvisionToken: "prov-abc"})
	}))

	ticket, err := client.StartProvision(context.Background(), LaunchRequest{
		Connector: "aws-dev",
		Image:     "ubuntu-24.04-base",
		Script:    "install-toolchain",
	})
	if err != nil {
		t.Fatalf("StartProvision: %v", err)
	}
	if ticket.ProvisionToken != "prov-abc" {
		t.Errorf("ticket = %+v", ticket)
	}
	if captured.Connector != "aws-dev" || captured.Image != "ubuntu-24.04-base" {
		t.Errorf("server saw %+v", captured)
	}
}

func TestStartProvisionValidatesRequest(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the server")
	}))
	if _, err := client.StartProvision(context.Background(), LaunchRequest{Image: "x"}); err == nil {
		t.Error("StartProvision accepted a request without a connector")
	}
	if _, err := client.StartProvision(context.Background(), LaunchRequest{Connector: "x"}); err == nil {
		t.Error("StartProvision accepted a request without an image")
	}
}

func TestProvisionSocketURL(t *testing.T) {
	client, err := NewClient(ClientConfig{BaseURL: "https://console.example.com", Token: "t"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got, err := client.ProvisionSocketURL("prov-abc")
	if err != nil {
		t.Fatalf("ProvisionSocketURL: %v", err)
	}
	want := "wss://console.example.com/api/v1/provision/status?provision_token=prov-abc"
	if got != want {
		t.Errorf("ProvisionSocketURL = %q, want %q", got, want)
	}
}

func TestTerminalToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/runners/42/terminal-token" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"token":"term-xyz"}`)
	}))

	token, err := client.TerminalToken(context.Background(), 42)
	if err != nil {
		t.Fatalf("TerminalToken: %v", err)
	}
	if token != "term-xyz" {
		t.Errorf("token = %q", token)
	}
}

func TestListRunnersFollowsPagination(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"items":[{"id":1,"name":"alpha","state":"running"}],"page":1,"total_pages":2}`)
		case "2":
			fmt.Fprint(w, `{"items":[{"id":2,"name":"beta","state":"stopped"}],"page":2,"total_pages":2}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))

	runners, err := client.ListRunners(context.Background())
	if err != nil {
		t.Fatalf("ListRunners: %v", err)
	}
	if len(runners) != 2 || runners[0].Name != "alpha" || runners[1].Name != "beta" {
		t.Errorf("runners = %+v", runners)
	}
}

func TestDeleteRunnerSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":"runner_not_found","message":"no such runner"}`)
	}))

	err := client.DeleteRunner(context.Background(), 99)
	if err == nil {
		t.Fatal("DeleteRunner succeeded for a missing runner")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound = false for %v", err)
	}
	if !strings.Contains(err.Error(), "runner_not_found") {
		t.Errorf("error %q missing console error code", err)
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream connect error")
	}))

	_, err := client.ListImages(context.Background())
	if err == nil {
		t.Fatal("ListImages succeeded through a 502")
	}
	if !strings.Contains(err.Error(), "upstream connect error") {
		t.Errorf("error %q missing raw body", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{Token: "t"}); err == nil {
		t.Error("NewClient accepted an empty BaseURL")
	}
	if _, err := NewClient(ClientConfig{BaseURL: "https://x"}); err == nil {
		t.Error("NewClient accepted an empty Token")
	}
}
