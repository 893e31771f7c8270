// Package httpclient builds the HTTP client shared by every collaborator
// that talks to the server under test or its wrapper.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// New returns a pooled client with its own transport. When insecure is set
// the server certificate is not verified; test deployments use self-signed
// certificates.
func New(timeout time.Duration, insecure bool) *http.Client {
	transport := cleanhttp.DefaultPooledTransport()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Response is the part of an HTTP response the step assertions look at.
// The body is read fully and the original response closed.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do sends req and buffers the response.
func Do(client *http.Client, req *http.Request) (*Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Credentials authenticate a user with basic auth.
type Credentials struct {
	Username string
	Password string
}

// NewRequest builds a request carrying creds. A JSON content type is set
// when a body is given.
func NewRequest(ctx context.Context, method, url string, creds Credentials, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if creds.Username != "" {
		req.SetBasicAuth(creds.Username, creds.Password)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
