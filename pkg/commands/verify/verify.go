package verify

import (
	"context"

	"github.com/rawpipe/rawpipe/pkg/dataset"
	"github.com/rawpipe/rawpipe/pkg/errors"
	"github.com/rawpipe/rawpipe/pkg/logging"
	"github.com/rawpipe/rawpipe/pkg/manifest"
	"github.com/rawpipe/rawpipe/pkg/paths"
)

// Options defines the options for the Verify command.
type Options struct {
	Paths paths.Paths

	// Splits are the split names to verify
	Splits []string
}

// SplitResult is the verification outcome for one split.
type SplitResult struct {
	Split   string
	Listing string
	Total   int
	Missing []manifest.Entry
}

// Result aggregates verification across splits.
type Result struct {
	Splits []SplitResult
}

// OK reports whether every listed image of every split exists.
func (r *Result) OK() bool {
	for _, s := range r.Splits {
		if len(s.Missing) > 0 {
			return false
		}
	}
	return true
}

// Verify checks that every manifest entry of the requested splits resolves
// to an existing image. Missing images are reported, not fatal; a missing
// listing file is.
func Verify(ctx context.Context, opts Options) (*Result, error) {
	log := logging.GetLogger("core.commands")
	log.Debug().Str("command", "Verify").Strs("splits", opts.Splits).Msg("Executing command")

	if len(opts.Splits) == 0 {
		return nil, errors.New(errors.ErrInvalidInput, "no splits to verify")
	}

	result := &Result{Splits: make([]SplitResult, 0, len(opts.Splits))}
	root := opts.Paths.DataRoot()

	for _, split := range opts.Splits {
		listing := opts.Paths.ManifestPath(split)
		vr, err := dataset.VerifyManifest(ctx, listing, root)
		if err != nil {
			return nil, err
		}
		result.Splits = append(result.Splits, SplitResult{
			Split:   split,
			Listing: listing,
			Total:   vr.Total,
			Missing: vr.Missing,
		})
	}

	log.Info().Str("command", "Verify").Bool("ok", result.OK()).Msg("Command finished")
	return result, nil
}
