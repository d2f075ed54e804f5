package train

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rawpipe/rawpipe/pkg/config"
	"github.com/rawpipe/rawpipe/pkg/errors"
	"github.com/rawpipe/rawpipe/pkg/manifest"
	"github.com/rawpipe/rawpipe/pkg/paths"
	"github.com/rawpipe/rawpipe/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T, splits ...string) (paths.Paths, *config.Config) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv(paths.EnvDataDir, filepath.Join(tmpDir, "data"))
	t.Setenv(paths.EnvConfigDir, filepath.Join(tmpDir, "config"))
	t.Setenv(paths.EnvCacheDir, filepath.Join(tmpDir, "cache"))

	dataRoot := filepath.Join(tmpDir, "dataset")
	require.NoError(t, os.MkdirAll(dataRoot, 0755))

	p, err := paths.New(dataRoot)
	require.NoError(t, err)

	cfg, err := config.Load("")
	require.NoError(t, err)

	for _, split := range splits {
		require.NoError(t, manifest.Write(p.ManifestPath(split), []string{split + "/a.png"}))
	}

	return p, cfg
}

func TestRunTrainDryRun(t *testing.T) {
	p, cfg := testEnv(t, "train")

	result, err := Run(context.Background(), Options{
		Config:  cfg,
		Paths:   p,
		Mode:    runner.ModeTrain,
		Pattern: runner.PatternBayer,
		DryRun:  true,
	})
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, cfg.Backend.Command, result.Command)
	assert.Equal(t, "train", result.Args[0])
	assert.Contains(t, result.Args, p.ManifestPath("train"))
	assert.Contains(t, result.Args, "--learning-rate")
}

func TestRunTestUsesTestSplit(t *testing.T) {
	p, cfg := testEnv(t, "test")

	result, err := Run(context.Background(), Options{
		Config:  cfg,
		Paths:   p,
		Mode:    runner.ModeTest,
		Pattern: runner.PatternXtrans,
		DryRun:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "test", result.Args[0])
	assert.Contains(t, result.Args, p.ManifestPath("test"))
	assert.Contains(t, result.Args, "xtrans")
}

func TestRunSplitOverride(t *testing.T) {
	p, cfg := testEnv(t, "val")

	result, err := Run(context.Background(), Options{
		Config:  cfg,
		Paths:   p,
		Mode:    runner.ModeTest,
		Pattern: runner.PatternBayer,
		Split:   "val",
		DryRun:  true,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Args, p.ManifestPath("val"))
}

func TestRunExtraArgsAfterConfigArgs(t *testing.T) {
	p, cfg := testEnv(t, "train")
	cfg.Backend.Args = []string{"--from-config"}

	result, err := Run(context.Background(), Options{
		Config:    cfg,
		Paths:     p,
		Mode:      runner.ModeTrain,
		Pattern:   runner.PatternBayer,
		DryRun:    true,
		ExtraArgs: []string{"--from-flag"},
	})
	require.NoError(t, err)

	args := result.Args
	var cfgIdx, flagIdx int
	for i, a := range args {
		switch a {
		case "--from-config":
			cfgIdx = i
		case "--from-flag":
			flagIdx = i
		}
	}
	assert.Greater(t, flagIdx, cfgIdx)
}

func TestRunMissingManifest(t *testing.T) {
	p, cfg := testEnv(t) // no manifests written

	_, err := Run(context.Background(), Options{
		Config:  cfg,
		Paths:   p,
		Mode:    runner.ModeTrain,
		Pattern: runner.PatternBayer,
		DryRun:  true,
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}
