// Package wrapper talks to the oCIS test wrapper, a small HTTP service that
// runs server CLI commands and restarts the server with a different
// environment on behalf of the acceptance tests.
package wrapper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ocisaccept/internal/httpclient"
	"ocisaccept/pkg/logging"
)

const subsystem = "Wrapper"

// Command status values reported by the wrapper.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// CommandRequest is the body of POST /command.
type CommandRequest struct {
	Command string   `json:"command"`
	Inputs  []string `json:"inputs,omitempty"`
}

// CommandResult is the decoded body of a /command response.
type CommandResult struct {
	HTTPStatus int    `json:"-"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exitCode"`
	Message    string `json:"message"`
}

// Succeeded reports whether the command ran and exited with status zero.
func (r CommandResult) Succeeded() bool {
	return r.HTTPStatus == http.StatusOK && r.Status == StatusOK && r.ExitCode == 0
}

// Client is a wrapper API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the wrapper at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// RunCommand executes a server CLI command. inputs are written to the
// command's stdin one per line, e.g. for password prompts.
func (c *Client) RunCommand(ctx context.Context, command string, inputs ...string) (CommandResult, error) {
	logging.Debug(subsystem, "Running command %q", command)

	resp, err := c.send(ctx, http.MethodPost, "/command", CommandRequest{Command: command, Inputs: inputs})
	if err != nil {
		return CommandResult{}, err
	}

	result := CommandResult{HTTPStatus: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		result.Message = string(resp.Body)
		return result, nil
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return result, fmt.Errorf("failed to decode command response: %w", err)
	}
	return result, nil
}

// Reconfigure restarts the server with env merged into its environment and
// returns the wrapper's HTTP status.
func (c *Client) Reconfigure(ctx context.Context, env map[string]string) (int, error) {
	logging.Debug(subsystem, "Reconfiguring server with %d variables", len(env))
	resp, err := c.send(ctx, http.MethodPut, "/config", env)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

// Rollback restores the environment the server was started with.
func (c *Client) Rollback(ctx context.Context) (int, error) {
	logging.Debug(subsystem, "Rolling back server configuration")
	resp, err := c.send(ctx, http.MethodDelete, "/rollback", nil)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

// Start starts the server. The wrapper answers 409 when it already runs.
func (c *Client) Start(ctx context.Context) (int, error) {
	resp, err := c.send(ctx, http.MethodPost, "/start", nil)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

// Stop stops the server.
func (c *Client) Stop(ctx context.Context) (int, error) {
	resp, err := c.send(ctx, http.MethodPost, "/stop", nil)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}) (*httpclient.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request for %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build wrapper request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpclient.Do(c.http, req)
	if err != nil {
		return nil, fmt.Errorf("wrapper request failed: %w", err)
	}
	return resp, nil
}
