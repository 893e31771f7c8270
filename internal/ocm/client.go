// Package ocm exchanges Open Cloud Mesh invitations through the sciencemesh
// endpoints of the server.
package ocm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"ocisaccept/internal/httpclient"
	"ocisaccept/pkg/logging"
)

const (
	generateInvitePath = "/sciencemesh/generate-invite"
	acceptInvitePath   = "/sciencemesh/accept-invite"
	subsystem          = "OCM"
)

// Invitation is the token returned when an invitation is generated.
type Invitation struct {
	Token       string `json:"token"`
	Description string `json:"description,omitempty"`
	Expiration  uint64 `json:"expiration,omitempty"`
	InviteLink  string `json:"invite_link,omitempty"`
}

type generateRequest struct {
	Recipient   string `json:"recipient,omitempty"`
	Description string `json:"description,omitempty"`
}

type acceptRequest struct {
	Token          string `json:"token"`
	ProviderDomain string `json:"providerDomain"`
}

// Client talks to one server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

// CreateInvitation generates an invitation as user. The HTTP status is
// always returned so failures can be asserted on; the invitation is only
// decoded on 200.
func (c *Client) CreateInvitation(ctx context.Context, user httpclient.Credentials, recipientEmail, description string) (Invitation, int, error) {
	payload, err := json.Marshal(generateRequest{Recipient: recipientEmail, Description: description})
	if err != nil {
		return Invitation{}, 0, err
	}

	// The server reads the query, older versions read the body.
	query := url.Values{}
	if recipientEmail != "" {
		query.Set("recipient", recipientEmail)
	}
	if description != "" {
		query.Set("description", description)
	}
	endpoint := c.baseURL + generateInvitePath
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := httpclient.NewRequest(ctx, http.MethodPost, endpoint, user, bytes.NewReader(payload))
	if err != nil {
		return Invitation{}, 0, err
	}
	resp, err := httpclient.Do(c.http, req)
	if err != nil {
		return Invitation{}, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		logging.Debug(subsystem, "generate-invite as %s returned %d: %s", user.Username, resp.StatusCode, resp.Body)
		return Invitation{}, resp.StatusCode, nil
	}

	var inv Invitation
	if err := json.Unmarshal(resp.Body, &inv); err != nil {
		return Invitation{}, resp.StatusCode, fmt.Errorf("invalid generate-invite response: %w", err)
	}
	return inv, resp.StatusCode, nil
}

// AcceptInvitation accepts token, issued by providerDomain, as user.
func (c *Client) AcceptInvitation(ctx context.Context, user httpclient.Credentials, token, providerDomain string) (int, error) {
	payload, err := json.Marshal(acceptRequest{Token: token, ProviderDomain: providerDomain})
	if err != nil {
		return 0, err
	}
	req, err := httpclient.NewRequest(ctx, http.MethodPost, c.baseURL+acceptInvitePath, user, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	resp, err := httpclient.Do(c.http, req)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		logging.Debug(subsystem, "accept-invite as %s returned %d: %s", user.Username, resp.StatusCode, resp.Body)
	}
	return resp.StatusCode, nil
}
