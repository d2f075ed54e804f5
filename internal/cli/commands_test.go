package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rawpipe/rawpipe/pkg/manifest"
	"github.com/rawpipe/rawpipe/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with args and captures stdout
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func testDataRoot(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmpDir, "state"))
	t.Setenv(paths.EnvDataDir, filepath.Join(tmpDir, "xdg-data"))
	t.Setenv(paths.EnvConfigDir, filepath.Join(tmpDir, "xdg-config"))
	t.Setenv(paths.EnvCacheDir, filepath.Join(tmpDir, "xdg-cache"))

	dataRoot := filepath.Join(tmpDir, "dataset")
	require.NoError(t, os.MkdirAll(dataRoot, 0755))
	return dataRoot
}

func TestListCommand(t *testing.T) {
	dataRoot := testDataRoot(t)
	require.NoError(t, manifest.Write(
		filepath.Join(dataRoot, "train_filelist.txt"),
		[]string{"train/a.png", "train/b.png"},
	))

	out, err := runCommand(t, "list", "train", "--data-root", dataRoot)
	require.NoError(t, err)

	assert.Contains(t, out, filepath.Join(dataRoot, "train", "a.png"))
	assert.Contains(t, out, filepath.Join(dataRoot, "train", "b.png"))
}

func TestListCommandLimit(t *testing.T) {
	dataRoot := testDataRoot(t)
	require.NoError(t, manifest.Write(
		filepath.Join(dataRoot, "train_filelist.txt"),
		[]string{"train/a.png", "train/b.png", "train/c.png"},
	))

	out, err := runCommand(t, "list", "train", "--data-root", dataRoot, "-n", "1")
	require.NoError(t, err)

	assert.Contains(t, out, filepath.Join(dataRoot, "train", "a.png"))
	assert.NotContains(t, out, filepath.Join(dataRoot, "train", "b.png"))
	assert.Contains(t, out, "2 more entries")
}

func TestListCommandMissingManifest(t *testing.T) {
	dataRoot := testDataRoot(t)

	_, err := runCommand(t, "list", "train", "--data-root", dataRoot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestVerifyCommandFailsOnMissingImages(t *testing.T) {
	dataRoot := testDataRoot(t)
	require.NoError(t, manifest.Write(
		filepath.Join(dataRoot, "train_filelist.txt"),
		[]string{"train/gone.png"},
	))

	_, err := runCommand(t, "verify", "train", "--data-root", dataRoot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing images")
}

func TestTrainCommandRejectsUnknownPattern(t *testing.T) {
	dataRoot := testDataRoot(t)

	_, err := runCommand(t, "train", "foveon", "--data-root", dataRoot)
	require.Error(t, err)
}

func TestTrainCommandDryRun(t *testing.T) {
	dataRoot := testDataRoot(t)
	require.NoError(t, manifest.Write(
		filepath.Join(dataRoot, "train_filelist.txt"),
		[]string{"train/a.png"},
	))

	out, err := runCommand(t, "train", "bayer", "--data-root", dataRoot, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "dry run")
}

func TestVersionCommand(t *testing.T) {
	// version prints via fmt.Printf to process stdout; just make sure the
	// command is wired and does not error
	root := NewRootCmd()
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
}
