// Package manifest reads and writes dataset listing files.
//
// A listing file is plain text, one relative image path per line. Entries
// are resolved against a root directory supplied by the caller, in file
// order, without deduplication. Blank lines are skipped.
package manifest

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/rawpipe/rawpipe/pkg/errors"
)

// Entry is one resolved line of a listing file.
type Entry struct {
	// Rel is the path as written in the listing, relative to the root
	Rel string

	// Path is Rel joined to the root directory
	Path string

	// Line is the 1-based line number the entry came from
	Line int
}

// Reader lazily iterates the entries of a listing file. Entries are
// yielded in file order. A listed image that does not exist is not an
// error here; existence is the consumer's concern.
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
	root    string
	line    int
	entry   Entry
	err     error
}

// Open validates the listing file and root directory and returns a Reader.
// It fails with errors.ErrNotFound when the listing file or the root
// directory does not exist, before any entry is yielded.
func Open(listing, root string) (*Reader, error) {
	info, err := os.Stat(listing)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrNotFound, "listing file %s does not exist", listing)
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat listing file %s", listing)
	}
	if info.IsDir() {
		return nil, errors.Newf(errors.ErrInvalidInput, "listing path %s is a directory", listing)
	}

	rootInfo, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrNotFound, "root directory %s does not exist", root)
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat root directory %s", root)
	}
	if !rootInfo.IsDir() {
		return nil, errors.Newf(errors.ErrInvalidInput, "root path %s is not a directory", root)
	}

	file, err := os.Open(listing)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to open listing file %s", listing)
	}

	return &Reader{
		file:    file,
		scanner: bufio.NewScanner(file),
		root:    root,
	}, nil
}

// Next advances to the next non-blank line. It returns false when the
// listing is exhausted or a read error occurred; check Err afterwards.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}

	for r.scanner.Scan() {
		r.line++
		rel := strings.TrimSpace(r.scanner.Text())
		if rel == "" {
			continue
		}
		r.entry = Entry{
			Rel:  rel,
			Path: Resolve(r.root, rel),
			Line: r.line,
		}
		return true
	}

	if err := r.scanner.Err(); err != nil {
		r.err = errors.Wrapf(err, errors.ErrManifestRead, "failed to read listing file %s", r.file.Name())
	}
	return false
}

// Entry returns the entry produced by the last successful call to Next.
func (r *Reader) Entry() Entry {
	return r.entry
}

// Err returns the first read error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll opens a listing file and collects all its entries.
func ReadAll(listing, root string) ([]Entry, error) {
	r, err := Open(listing, root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var entries []Entry
	for r.Next() {
		entries = append(entries, r.Entry())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Resolve joins a relative listing entry to the root directory. The result
// depends only on the inputs, so re-resolving the same pair is idempotent.
func Resolve(root, rel string) string {
	return filepath.Join(root, rel)
}

// Write emits a listing file with one relative path per line, in the order
// given, ending with a trailing newline. The parent directory must exist.
func Write(path string, rels []string) error {
	var b strings.Builder
	for _, rel := range rels {
		b.WriteString(rel)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write listing file %s", path)
	}
	return nil
}
