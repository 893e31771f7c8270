// Package webdav reads files back from spaces to verify uploads.
package webdav

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"ocisaccept/internal/httpclient"
)

const spacesDavPath = "/remote.php/dav/spaces/"

// Client reads from one server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

// FileURL is the spaces DAV address of path inside spaceID. Each path
// segment is escaped; the space id is used as is.
func (c *Client) FileURL(spaceID, path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + spacesDavPath + spaceID + "/" + strings.Join(segments, "/")
}

// Download fetches the file as user. The body is returned only on 200;
// other statuses are reported without an error so they can be asserted.
func (c *Client) Download(ctx context.Context, user httpclient.Credentials, spaceID, path string) ([]byte, int, error) {
	req, err := httpclient.NewRequest(ctx, http.MethodGet, c.FileURL(spaceID, path), user, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := httpclient.Do(c.http, req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}
	return resp.Body, resp.StatusCode, nil
}
