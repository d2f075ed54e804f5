package dataset

import (
	"context"
	"os"
	"sort"
	"sync"

	"github.com/rawpipe/rawpipe/pkg/logging"
	"github.com/rawpipe/rawpipe/pkg/manifest"
	"golang.org/x/sync/errgroup"
)

// verifyConcurrency bounds the number of in-flight stat calls
const verifyConcurrency = 16

// VerifyResult reports the outcome of checking one split's manifest
type VerifyResult struct {
	// Total is the number of entries in the listing file
	Total int

	// Missing holds the entries whose resolved path does not exist,
	// ordered by line number
	Missing []manifest.Entry
}

// OK reports whether every listed image exists
func (r *VerifyResult) OK() bool {
	return len(r.Missing) == 0
}

// VerifyManifest resolves every entry of a listing file and checks the
// target exists. Missing images are collected, not fatal; only reading
// the listing itself can fail.
func VerifyManifest(ctx context.Context, listing, root string) (*VerifyResult, error) {
	logger := logging.GetLogger("dataset.verify")
	done := logging.LogOperationStart(logger, "verify")
	defer done()

	entries, err := manifest.ReadAll(listing, root)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Total: len(entries)}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(verifyConcurrency)

	for _, entry := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := os.Stat(entry.Path); err != nil {
				mu.Lock()
				result.Missing = append(result.Missing, entry)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Missing, func(i, j int) bool {
		return result.Missing[i].Line < result.Missing[j].Line
	})

	logger.Info().
		Str("listing", listing).
		Int("total", result.Total).
		Int("missing", len(result.Missing)).
		Msg("Manifest verified")
	return result, nil
}
