package dataset

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rawpipe/rawpipe/pkg/errors"
	"github.com/rawpipe/rawpipe/pkg/logging"
)

// Extract unpacks a .tar.gz archive into destDir, creating it if needed.
// Entries that would escape destDir are rejected.
func Extract(archive, destDir string) error {
	logger := logging.GetLogger("dataset.extract")
	done := logging.LogOperationStart(logger, "extract")
	defer done()

	f, err := os.Open(archive)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Newf(errors.ErrNotFound, "archive %s does not exist", archive)
		}
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to open archive %s", archive)
	}
	defer func() { _ = f.Close() }()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", destDir)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, errors.ErrExtractFailed, "failed to read gzip stream from %s", archive)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	files := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, errors.ErrExtractFailed, "failed to read tar stream from %s", archive)
		}

		target, err := sanitizePath(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", target)
			}
		case tar.TypeReg:
			if err := extractFile(tr, target, hdr.FileInfo().Mode()); err != nil {
				return err
			}
			files++
		default:
			// symlinks, devices etc. are not expected in the dataset archive
			logger.Debug().Str("name", hdr.Name).Msg("Skipping non-regular tar entry")
		}
	}

	logger.Info().Str("archive", archive).Str("dest", destDir).Int("files", files).Msg("Extraction complete")
	return nil
}

// sanitizePath resolves a tar entry name under destDir and rejects names
// that would escape it.
func sanitizePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	clean := filepath.Clean(destDir)
	// archives built with `tar -C dir .` carry a "./" entry that resolves
	// to the destination itself
	if target == clean {
		return target, nil
	}
	if !strings.HasPrefix(target, clean+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrExtractFailed, "archive entry %q escapes destination directory", name)
	}
	return target, nil
}

func extractFile(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", filepath.Dir(target))
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileCreate, "failed to create %s", target)
	}

	_, err = io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrExtractFailed, "failed to write %s", target)
	}
	return nil
}
