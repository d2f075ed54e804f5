package dataset

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rawpipe/rawpipe/pkg/errors"
	"github.com/rawpipe/rawpipe/pkg/logging"
	"github.com/rawpipe/rawpipe/pkg/manifest"
)

// imageExtensions are the file types collected into generated listings
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// GenerateManifest walks the split directory under root and writes a
// listing file at listingPath with paths relative to root, sorted for
// determinism. An existing listing file is left untouched.
func GenerateManifest(root, split, listingPath string) (int, error) {
	logger := logging.GetLogger("dataset.generate")

	if _, err := os.Stat(listingPath); err == nil {
		logger.Debug().Str("listing", listingPath).Msg("Listing file already present, keeping it")
		entries, err := manifest.ReadAll(listingPath, root)
		if err != nil {
			return 0, err
		}
		return len(entries), nil
	}

	splitDir := filepath.Join(root, split)
	if _, err := os.Stat(splitDir); err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Newf(errors.ErrNotFound, "split directory %s does not exist", splitDir)
		}
		return 0, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", splitDir)
	}

	var rels []string
	err := filepath.WalkDir(splitDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrFileAccess, "failed to walk %s", splitDir)
	}

	sort.Strings(rels)

	if err := manifest.Write(listingPath, rels); err != nil {
		return 0, err
	}

	logger.Info().Str("split", split).Str("listing", listingPath).Int("entries", len(rels)).Msg("Listing file generated")
	return len(rels), nil
}
