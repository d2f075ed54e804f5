package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rawpipe/rawpipe/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveBytes(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload(t *testing.T) {
	body := []byte("archive bytes")
	srv := serveBytes(t, body)
	destDir := filepath.Join(t.TempDir(), "downloads")

	dest, err := Download(srv.URL+"/dataset.tar.gz", destDir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "dataset.tar.gz"), dest)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestDownloadVerifiesChecksum(t *testing.T) {
	body := []byte("archive bytes")
	sum := sha256.Sum256(body)
	srv := serveBytes(t, body)

	dest, err := Download(srv.URL+"/dataset.tar.gz", t.TempDir(), hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	assert.FileExists(t, dest)
}

func TestDownloadChecksumMismatch(t *testing.T) {
	srv := serveBytes(t, []byte("archive bytes"))
	destDir := t.TempDir()

	_, err := Download(srv.URL+"/dataset.tar.gz", destDir, "deadbeef")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrChecksumMismatch))

	// No artifact left behind
	entries, readErr := os.ReadDir(destDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestDownloadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	_, err := Download(srv.URL+"/dataset.tar.gz", t.TempDir(), "")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrDownloadFailed))
}

func TestChecksumFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	sum := sha256.Sum256([]byte("content"))
	got, err := ChecksumFile(path)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestChecksumFileMissing(t *testing.T) {
	_, err := ChecksumFile(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}
