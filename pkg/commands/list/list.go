package list

import (
	"github.com/rawpipe/rawpipe/pkg/logging"
	"github.com/rawpipe/rawpipe/pkg/manifest"
	"github.com/rawpipe/rawpipe/pkg/paths"
)

// Options defines the options for the List command.
type Options struct {
	Paths paths.Paths

	// Split selects which listing file to read
	Split string

	// Limit caps the number of entries returned; 0 means all
	Limit int
}

// Result holds the resolved entries of one split's manifest.
type Result struct {
	Split   string
	Listing string

	// Total is the full entry count, regardless of Limit
	Total int

	Entries []manifest.Entry
}

// List resolves the entries of a split's listing file, in file order.
func List(opts Options) (*Result, error) {
	log := logging.GetLogger("core.commands")
	log.Debug().Str("command", "List").Str("split", opts.Split).Msg("Executing command")

	listing := opts.Paths.ManifestPath(opts.Split)
	r, err := manifest.Open(listing, opts.Paths.DataRoot())
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	result := &Result{Split: opts.Split, Listing: listing}
	for r.Next() {
		result.Total++
		if opts.Limit == 0 || len(result.Entries) < opts.Limit {
			result.Entries = append(result.Entries, r.Entry())
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}

	log.Info().Str("command", "List").Int("entries", result.Total).Msg("Command finished")
	return result, nil
}
