// Package graph resolves drives (spaces) through the libre graph API.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ocisaccept/internal/httpclient"
	"ocisaccept/pkg/logging"
)

const (
	myDrivesPath = "/graph/v1.0/me/drives"
	subsystem    = "Graph"

	// PersonalSpace selects the personal drive of the user, whose real name
	// is the display name of its owner.
	PersonalSpace = "Personal"
)

// ErrSpaceNotFound is returned when no drive of the user has the name.
var ErrSpaceNotFound = errors.New("space not found")

// Drive is the subset of a graph drive the steps use.
type Drive struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DriveType string `json:"driveType"`
}

type driveCollection struct {
	Value []Drive `json:"value"`
}

// Client queries one server.
type Client struct {
	baseURL string
	http    *http.Client

	// Attempts is how often the drive list is fetched before giving up.
	// Freshly created spaces can take a moment to show up.
	Attempts   int
	RetryDelay time.Duration
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       client,
		Attempts:   10,
		RetryDelay: time.Second,
	}
}

// MyDrives lists the drives visible to user.
func (c *Client) MyDrives(ctx context.Context, user httpclient.Credentials) ([]Drive, error) {
	req, err := httpclient.NewRequest(ctx, http.MethodGet, c.baseURL+myDrivesPath, user, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Do(c.http, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to list drives of %s: HTTP status %d", user.Username, resp.StatusCode)
	}

	var drives driveCollection
	if err := json.Unmarshal(resp.Body, &drives); err != nil {
		return nil, fmt.Errorf("invalid drive list: %w", err)
	}
	return drives.Value, nil
}

// SpaceIDByName returns the id of the drive called name. "Personal" picks
// the personal drive.
func (c *Client) SpaceIDByName(ctx context.Context, user httpclient.Credentials, name string) (string, error) {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		drives, err := c.MyDrives(ctx, user)
		if err != nil {
			return "", err
		}
		if id, ok := findDrive(drives, name); ok {
			return id, nil
		}
		if attempt >= attempts {
			break
		}

		logging.Debug(subsystem, "Space %q not listed for %s yet (attempt %d/%d)", name, user.Username, attempt, attempts)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.RetryDelay):
		}
	}
	return "", fmt.Errorf("%w: %q for user %s", ErrSpaceNotFound, name, user.Username)
}

func findDrive(drives []Drive, name string) (string, bool) {
	for _, d := range drives {
		if name == PersonalSpace && d.DriveType == "personal" {
			return d.ID, true
		}
		if d.Name == name {
			return d.ID, true
		}
	}
	return "", false
}
