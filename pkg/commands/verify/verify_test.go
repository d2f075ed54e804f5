package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rawpipe/rawpipe/pkg/errors"
	"github.com/rawpipe/rawpipe/pkg/manifest"
	"github.com/rawpipe/rawpipe/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("img"), 0644))
}

func testPaths(t *testing.T) paths.Paths {
	t.Helper()
	root := t.TempDir()
	p, err := paths.New(root)
	require.NoError(t, err)
	return p
}

func TestVerifyAllSplitsOK(t *testing.T) {
	p := testPaths(t)
	root := p.DataRoot()

	touch(t, filepath.Join(root, "train", "a.png"))
	touch(t, filepath.Join(root, "val", "b.png"))
	require.NoError(t, manifest.Write(p.ManifestPath("train"), []string{"train/a.png"}))
	require.NoError(t, manifest.Write(p.ManifestPath("val"), []string{"val/b.png"}))

	result, err := Verify(context.Background(), Options{Paths: p, Splits: []string{"train", "val"}})
	require.NoError(t, err)

	assert.True(t, result.OK())
	require.Len(t, result.Splits, 2)
	assert.Equal(t, "train", result.Splits[0].Split)
	assert.Equal(t, 1, result.Splits[0].Total)
}

func TestVerifyReportsMissingPerSplit(t *testing.T) {
	p := testPaths(t)
	root := p.DataRoot()

	touch(t, filepath.Join(root, "train", "a.png"))
	require.NoError(t, manifest.Write(p.ManifestPath("train"), []string{"train/a.png", "train/gone.png"}))

	result, err := Verify(context.Background(), Options{Paths: p, Splits: []string{"train"}})
	require.NoError(t, err)

	assert.False(t, result.OK())
	require.Len(t, result.Splits, 1)
	require.Len(t, result.Splits[0].Missing, 1)
	assert.Equal(t, "train/gone.png", result.Splits[0].Missing[0].Rel)
}

func TestVerifyMissingListing(t *testing.T) {
	p := testPaths(t)

	_, err := Verify(context.Background(), Options{Paths: p, Splits: []string{"train"}})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestVerifyNoSplits(t *testing.T) {
	p := testPaths(t)

	_, err := Verify(context.Background(), Options{Paths: p})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}
