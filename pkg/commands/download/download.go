package download

import (
	"os"
	"path"
	"path/filepath"

	"github.com/rawpipe/rawpipe/pkg/config"
	"github.com/rawpipe/rawpipe/pkg/dataset"
	"github.com/rawpipe/rawpipe/pkg/errors"
	"github.com/rawpipe/rawpipe/pkg/logging"
	"github.com/rawpipe/rawpipe/pkg/paths"
)

// Options defines the options for the Download command.
type Options struct {
	Config *config.Config
	Paths  paths.Paths

	// SkipExtract downloads and verifies the archive without unpacking it
	SkipExtract bool
}

// Result reports the downloaded archive and the per-split entry counts.
type Result struct {
	Archive string
	Reused  bool

	// SplitCounts maps split name to the number of listing entries,
	// populated unless SkipExtract is set
	SplitCounts map[string]int
}

// Download fetches the dataset archive, verifies it, extracts it into the
// data root, and makes sure every split has a listing file.
func Download(opts Options) (*Result, error) {
	log := logging.GetLogger("core.commands")
	log.Debug().Str("command", "Download").Msg("Executing command")

	result := &Result{}

	archive, reused, err := fetchArchive(opts)
	if err != nil {
		return nil, err
	}
	result.Archive = archive
	result.Reused = reused

	if opts.SkipExtract {
		log.Info().Str("command", "Download").Str("archive", archive).Msg("Command finished")
		return result, nil
	}

	root := opts.Paths.DataRoot()
	if err := dataset.Extract(archive, root); err != nil {
		return nil, err
	}

	result.SplitCounts = make(map[string]int, len(opts.Config.Dataset.Splits))
	for _, split := range opts.Config.Dataset.Splits {
		count, err := dataset.GenerateManifest(root, split, opts.Paths.ManifestPath(split))
		if err != nil {
			return nil, err
		}
		result.SplitCounts[split] = count
	}

	log.Info().
		Str("command", "Download").
		Str("archive", archive).
		Int("splits", len(result.SplitCounts)).
		Msg("Command finished")
	return result, nil
}

// fetchArchive reuses a previously downloaded archive when its checksum
// still matches; otherwise it downloads afresh.
func fetchArchive(opts Options) (string, bool, error) {
	url := opts.Config.Dataset.URL
	sum := opts.Config.Dataset.SHA256

	if sum != "" {
		cached, err := cachedArchive(opts, url, sum)
		if err != nil {
			return "", false, err
		}
		if cached != "" {
			return cached, true, nil
		}
	}

	archive, err := dataset.Download(url, opts.Paths.DownloadsDir(), sum)
	if err != nil {
		return "", false, err
	}
	return archive, false, nil
}

func cachedArchive(opts Options, url, sum string) (string, error) {
	candidate := filepath.Join(opts.Paths.DownloadsDir(), path.Base(url))
	if _, err := os.Stat(candidate); err != nil {
		return "", nil
	}

	got, err := dataset.ChecksumFile(candidate)
	if err != nil {
		return "", err
	}
	if got != sum {
		// Stale or corrupt; drop it so Download writes a fresh copy
		if err := os.Remove(candidate); err != nil {
			return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to remove stale archive %s", candidate)
		}
		return "", nil
	}
	return candidate, nil
}
