// Package dataset acquires and checks the demosaicing dataset: archive
// download, checksum verification, extraction, listing-file generation,
// and manifest verification.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/rawpipe/rawpipe/pkg/errors"
	"github.com/rawpipe/rawpipe/pkg/logging"
)

// Download fetches url into destDir and returns the path of the downloaded
// file. The write is atomic: data goes to a temp file first and is renamed
// into place only on success. When sha256sum is non-empty the download is
// verified against it and removed on mismatch.
func Download(url, destDir, sha256sum string) (string, error) {
	logger := logging.GetLogger("dataset.download")
	done := logging.LogOperationStart(logger, "download")
	defer done()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "failed to create download directory %s", destDir)
	}

	dest := filepath.Join(destDir, path.Base(url))
	logger.Info().Str("url", url).Str("dest", dest).Msg("Downloading dataset archive")

	resp, err := http.Get(url)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrDownloadFailed, "failed to fetch %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf(errors.ErrDownloadFailed, "unexpected status %s fetching %s", resp.Status, url)
	}

	tmp, err := os.CreateTemp(destDir, path.Base(url)+".partial-*")
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileCreate, "failed to create temp file in %s", destDir)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	hasher := sha256.New()
	body := io.Reader(resp.Body)

	// Progress bar only when attached to a terminal
	var bar *pterm.ProgressbarPrinter
	if resp.ContentLength > 0 && isatty.IsTerminal(os.Stderr.Fd()) {
		bar, _ = pterm.DefaultProgressbar.
			WithTotal(int(resp.ContentLength)).
			WithTitle("Downloading").
			WithWriter(os.Stderr).
			Start()
		body = io.TeeReader(body, &progressWriter{bar: bar})
	}

	written, err := io.Copy(io.MultiWriter(tmp, hasher), body)
	if bar != nil {
		_, _ = bar.Stop()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrDownloadFailed, "failed while downloading %s", url)
	}

	if sha256sum != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if got != sha256sum {
			return "", errors.Newf(errors.ErrChecksumMismatch,
				"checksum mismatch for %s: expected %s, got %s", url, sha256sum, got).
				WithDetail("expected", sha256sum).
				WithDetail("actual", got)
		}
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return "", errors.Wrapf(err, errors.ErrFileWrite, "failed to move download into place at %s", dest)
	}

	logger.Info().Str("dest", dest).Int64("bytes", written).Msg("Download complete")
	return dest, nil
}

// ChecksumFile computes the SHA-256 of a file as a hex string.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Newf(errors.ErrNotFound, "file %s does not exist", path)
		}
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to open %s", path)
	}
	defer func() { _ = f.Close() }()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", path)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// progressWriter feeds byte counts into a pterm progress bar
type progressWriter struct {
	bar *pterm.ProgressbarPrinter
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.bar.Add(len(p))
	return len(p), nil
}
