package webdav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocisaccept/internal/httpclient"
)

func TestFileURL(t *testing.T) {
	c := NewClient("https://ocis.example.test/", nil)
	assert.Equal(t,
		"https://ocis.example.test/remote.php/dav/spaces/s$1/folder/my%20file%231.txt",
		c.FileURL("s$1", "/folder/my file#1.txt"))
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		if user != "Alice" || pass != "123456" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/remote.php/dav/spaces/space-1/textfile.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("uploaded content"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	alice := httpclient.Credentials{Username: "Alice", Password: "123456"}

	body, status, err := c.Download(context.Background(), alice, "space-1", "textfile.txt")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "uploaded content", string(body))

	body, status, err = c.Download(context.Background(), alice, "space-1", "missing.txt")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Nil(t, body)

	_, status, err = c.Download(context.Background(), httpclient.Credentials{Username: "Brian"}, "space-1", "textfile.txt")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
}
