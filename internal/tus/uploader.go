package tus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"ocisaccept/internal/httpclient"
	"ocisaccept/pkg/logging"
)

const (
	ProtocolVersion = "1.0.0"

	HeaderTusResumable   = "Tus-Resumable"
	HeaderUploadMetadata = "Upload-Metadata"
	HeaderUploadLength   = "Upload-Length"
	HeaderUploadOffset   = "Upload-Offset"

	ContentTypeOffsetStream = "application/offset+octet-stream"

	spacesDavPath = "/remote.php/dav/spaces/"
	subsystem     = "TUS"
)

// ErrMissingLocation is returned when the server acknowledges the creation
// request without saying where the upload lives.
var ErrMissingLocation = errors.New("creation response has no Location header")

// StatusError reports an unexpected HTTP status in one phase of an upload.
type StatusError struct {
	Op       string // "create", "probe" or "write"
	Method   string
	URL      string
	Expected int
	Actual   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tus %s: %s %s: expected HTTP status %d, got %d", e.Op, e.Method, e.URL, e.Expected, e.Actual)
}

// Credentials authenticate the uploading user with basic auth.
type Credentials = httpclient.Credentials

// UploadTarget names the local file and where it should end up.
type UploadTarget struct {
	BaseURL       string
	SpaceID       string
	ResourceName  string
	LocalFilePath string
}

// CollectionAddress is the spaces DAV URL of the target space.
func (t UploadTarget) CollectionAddress() string {
	return strings.TrimRight(t.BaseURL, "/") + spacesDavPath + t.SpaceID
}

// Uploader performs single-shot TUS uploads: one creation request followed
// by one write at offset zero. It does not resume, retry or chunk.
type Uploader struct {
	client *http.Client
	escape EndpointEscaper
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithEscaper sets the policy applied to the tusEndpoint metadata value.
func WithEscaper(escape EndpointEscaper) Option {
	return func(u *Uploader) {
		u.escape = escape
	}
}

// NewUploader creates an uploader using client. The default escaping
// policy is DollarToPercent.
func NewUploader(client *http.Client, opts ...Option) *Uploader {
	u := &Uploader{
		client: client,
		escape: DollarToPercent,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.escape == nil {
		u.escape = NoEscape
	}
	return u
}

// CreateUploadSession announces the upload and returns the absolute
// address of the created resource. extra metadata pairs follow tusEndpoint
// and filename in the order given.
func (u *Uploader) CreateUploadSession(ctx context.Context, creds Credentials, target UploadTarget, extra ...MetadataPair) (string, error) {
	info, err := statReadable(target.LocalFilePath)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("cannot read local file %s: is a directory", target.LocalFilePath)
	}

	collection := target.CollectionAddress()
	md := BuildMetadata(collection, target.ResourceName, u.escape, extra...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, collection, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build creation request: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set(HeaderTusResumable, ProtocolVersion)
	req.Header.Set(HeaderUploadMetadata, md.Encode())
	req.Header.Set(HeaderUploadLength, strconv.FormatInt(info.Size(), 10))

	logging.Debug(subsystem, "Creating upload for %s (%d bytes) at %s", target.ResourceName, info.Size(), collection)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tus create: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated {
		return "", &StatusError{Op: "create", Method: req.Method, URL: collection, Expected: http.StatusCreated, Actual: resp.StatusCode}
	}

	location, err := resp.Location()
	if err != nil {
		if errors.Is(err, http.ErrNoLocation) {
			return "", ErrMissingLocation
		}
		return "", fmt.Errorf("tus create: invalid Location header: %w", err)
	}

	logging.Debug(subsystem, "Upload resource created at %s", location)
	return location.String(), nil
}

// UploadBytes checks that the resource at location exists and writes the
// whole local file to it at offset zero.
func (u *Uploader) UploadBytes(ctx context.Context, creds Credentials, location, localFile string) error {
	if location == "" {
		return ErrMissingLocation
	}

	if err := u.probe(ctx, creds, location); err != nil {
		return err
	}

	f, err := os.Open(localFile)
	if err != nil {
		return fmt.Errorf("cannot read local file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("cannot read local file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, location, f)
	if err != nil {
		return fmt.Errorf("failed to build write request: %w", err)
	}
	req.ContentLength = info.Size()
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set(HeaderTusResumable, ProtocolVersion)
	req.Header.Set(HeaderUploadOffset, "0")
	req.Header.Set("Content-Type", ContentTypeOffsetStream)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("tus write: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusNoContent {
		return &StatusError{Op: "write", Method: req.Method, URL: location, Expected: http.StatusNoContent, Actual: resp.StatusCode}
	}

	logging.Debug(subsystem, "Wrote %d bytes to %s", info.Size(), location)
	return nil
}

// Upload runs CreateUploadSession and, only if it succeeds, UploadBytes.
// The returned location is set whenever creation succeeded.
func (u *Uploader) Upload(ctx context.Context, creds Credentials, target UploadTarget, extra ...MetadataPair) (string, error) {
	location, err := u.CreateUploadSession(ctx, creds, target, extra...)
	if err != nil {
		return "", err
	}
	return location, u.UploadBytes(ctx, creds, location, target.LocalFilePath)
}

func (u *Uploader) probe(ctx context.Context, creds Credentials, location string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, location, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set(HeaderTusResumable, ProtocolVersion)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("tus probe: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "probe", Method: req.Method, URL: location, Expected: http.StatusOK, Actual: resp.StatusCode}
	}
	return nil
}

// statReadable opens path so a file that exists but cannot be read fails
// here and not after the creation request.
func statReadable(path string) (os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read local file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot read local file: %w", err)
	}
	return info, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
