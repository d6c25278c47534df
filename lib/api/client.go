// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package api is the client for the console REST API: launching
// runners, listing catalog resources, and minting the tokens that
// authorize the provisioning status stream and terminal sockets.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// maxResponseSize bounds response bodies. Catalog listings are small;
// the limit guards against a misbehaving endpoint streaming forever.
const maxResponseSize = 8 << 20

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the console base URL (e.g. "https://console.example.com").
	BaseURL string
	// Token is the API bearer token.
	Token string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client talks to the console API. Safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a console API client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if config.Token == "" {
		return nil, fmt.Errorf("api: Token is required")
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the configured console base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StartProvision asks the console to launch a runner. The returned
// ticket carries the provision token that scopes the status stream to
// this launch; pass it to ProvisionSocketURL.
func (c *Client) StartProvision(ctx context.Context, request LaunchRequest) (*ProvisionTicket, error) {
	if request.Connector == "" {
		return nil, fmt.Errorf("api: launch request needs a connector")
	}
	if request.Image == "" {
		return nil, fmt.Errorf("api: launch request needs an image")
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/api/v1/runners", request, nil)
	if err != nil {
		return nil, fmt.Errorf("start provisioning: %w", err)
	}
	var ticket ProvisionTicket
	if err := json.Unmarshal(body, &ticket); err != nil {
		return nil, fmt.Errorf("parse provisioning ticket: %w", err)
	}
	if ticket.ProvisionToken == "" {
		return nil, fmt.Errorf("console returned no provision token")
	}
	return &ticket, nil
}

// ProvisionSocketURL builds the provisioning status stream endpoint
// for a provision token. The scheme maps http→ws and https→wss.
func (c *Client) ProvisionSocketURL(provisionToken string) (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse console URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "ws":
		parsed.Scheme = "ws"
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("console URL has unsupported scheme %q", parsed.Scheme)
	}
	parsed.Path = "/api/v1/provision/status"
	query := url.Values{}
	query.Set("provision_token", provisionToken)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// TerminalToken mints a short-lived token authorizing a terminal
// connection to the runner. Satisfies terminal.TokenSource.
func (c *Client) TerminalToken(ctx context.Context, runnerID int64) (string, error) {
	path := fmt.Sprintf("/api/v1/runners/%d/terminal-token", runnerID)
	body, err := c.doRequest(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		return "", fmt.Errorf("mint terminal token: %w", err)
	}
	var response struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("parse terminal token: %w", err)
	}
	return response.Token, nil
}

// ListRunners returns all runners visible to the caller, following
// the console's pagination.
func (c *Client) ListRunners(ctx context.Context) ([]Runner, error) {
	return listPaginated[Runner](ctx, c, "/api/v1/runners")
}

// ListConnectors returns the configured cloud connectors.
func (c *Client) ListConnectors(ctx context.Context) ([]Connector, error) {
	return listPaginated[Connector](ctx, c, "/api/v1/connectors")
}

// ListImages returns the VM images available for launching.
func (c *Client) ListImages(ctx context.Context) ([]Image, error) {
	return listPaginated[Image](ctx, c, "/api/v1/images")
}

// ListScripts returns the setup scripts available at launch.
func (c *Client) ListScripts(ctx context.Context) ([]Script, error) {
	return listPaginated[Script](ctx, c, "/api/v1/scripts")
}

// DeleteRunner terminates a runner and releases its cloud resources.
func (c *Client) DeleteRunner(ctx context.Context, runnerID int64) error {
	path := fmt.Sprintf("/api/v1/runners/%d", runnerID)
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete runner %d: %w", runnerID, err)
	}
	return nil
}

// page is the console's paginated list envelope.
type page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

// listPaginated walks every page of a listing endpoint and flattens
// the items.
func listPaginated[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var items []T
	for pageNumber := 1; ; pageNumber++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(pageNumber))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil, query)
		if err != nil {
			return nil, fmt.Errorf("list %s (page %d): %w", path, pageNumber, err)
		}
		var current page[T]
		if err := json.Unmarshal(body, &current); err != nil {
			return nil, fmt.Errorf("parse %s (page %d): %w", path, pageNumber, err)
		}
		items = append(items, current.Items...)
		if current.TotalPages == 0 || pageNumber >= current.TotalPages {
			return items, nil
		}
	}
}

// doRequest performs one console API call. Every request carries a
// fresh request ID so console-side logs can be correlated with client
// logs.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	request.Header.Set("X-Request-ID", requestID)
	request.Header.Set("Authorization", "Bearer "+c.token)
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("console API request",
		"method", method, "path", path, "request_id", requestID)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	apiErr := &APIError{StatusCode: response.StatusCode}
	if jsonErr := json.Unmarshal(responseBody, apiErr); jsonErr != nil || apiErr.Message == "" {
		// Non-JSON error body: fail loud with the raw text.
		apiErr.Message = strings.TrimSpace(string(responseBody))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(response.StatusCode)
		}
	}
	c.logger.Warn("console API error",
		"method", method, "path", path, "request_id", requestID,
		"status", response.StatusCode, "code", apiErr.Code)
	return responseBody, apiErr
}
