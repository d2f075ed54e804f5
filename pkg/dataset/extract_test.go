package dataset

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/rawpipe/rawpipe/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"train/000/000001.png": "one",
		"train/000/000002.png": "two",
		"val/000/000001.png":   "three",
	})
	dest := filepath.Join(t.TempDir(), "data")

	require.NoError(t, Extract(archive, dest))

	for _, rel := range []string{
		"train/000/000001.png",
		"train/000/000002.png",
		"val/000/000001.png",
	} {
		_, err := os.Stat(filepath.Join(dest, rel))
		assert.NoError(t, err, rel)
	}

	content, err := os.ReadFile(filepath.Join(dest, "train/000/000001.png"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(content))
}

func TestExtractMissingArchive(t *testing.T) {
	err := Extract(filepath.Join(t.TempDir(), "nope.tar.gz"), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestExtractNotGzip(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "bad.tar.gz")
	require.NoError(t, os.WriteFile(archive, []byte("not a gzip stream"), 0644))

	err := Extract(archive, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrExtractFailed))
}

func TestExtractDotPrefixedEntries(t *testing.T) {
	// tar -czf out.tgz -C dir . produces a "./" entry for the root and
	// "./"-prefixed names for everything below it
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "./",
		Typeflag: tar.TypeDir,
		Mode:     0755,
	}))
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "./train/",
		Typeflag: tar.TypeDir,
		Mode:     0755,
	}))
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "./train/a.png",
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     3,
	}))
	_, err := tw.Write([]byte("img"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	archive := filepath.Join(t.TempDir(), "dataset.tar.gz")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0644))
	dest := filepath.Join(t.TempDir(), "data")

	require.NoError(t, Extract(archive, dest))

	content, err := os.ReadFile(filepath.Join(dest, "train", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "img", string(content))
}

func TestExtractRejectsPathTraversal(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"../escape.png": "evil",
	})
	dest := filepath.Join(t.TempDir(), "data")

	err := Extract(archive, dest)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrExtractFailed))

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "escape.png"))
	assert.True(t, os.IsNotExist(statErr))
}
