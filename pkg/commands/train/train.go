package train

import (
	"context"

	"github.com/rawpipe/rawpipe/pkg/config"
	"github.com/rawpipe/rawpipe/pkg/logging"
	"github.com/rawpipe/rawpipe/pkg/paths"
	"github.com/rawpipe/rawpipe/pkg/runner"
)

// Options defines the options for the Train and Test commands.
type Options struct {
	Config *config.Config
	Paths  paths.Paths

	// Mode is runner.ModeTrain or runner.ModeTest
	Mode runner.Mode

	// Pattern is the CFA pattern the backend should handle
	Pattern runner.Pattern

	// Split overrides the default split for the mode
	// (train for training, test for testing)
	Split string

	// DryRun logs the backend invocation without launching it
	DryRun bool

	// ExtraArgs are passed through to the backend after the built arguments
	ExtraArgs []string
}

// Run launches the backend for the requested mode and pattern. The split's
// listing file and the data root must exist; everything past that point is
// the backend's responsibility.
func Run(ctx context.Context, opts Options) (*runner.Result, error) {
	log := logging.GetLogger("core.commands")
	log.Debug().
		Str("command", "Train").
		Str("mode", string(opts.Mode)).
		Str("pattern", string(opts.Pattern)).
		Msg("Executing command")

	split := opts.Split
	if split == "" {
		switch opts.Mode {
		case runner.ModeTrain:
			split = "train"
		case runner.ModeTest:
			split = "test"
		}
	}

	extra := append([]string(nil), opts.Config.Backend.Args...)
	extra = append(extra, opts.ExtraArgs...)

	job := runner.Job{
		Mode:          opts.Mode,
		Pattern:       opts.Pattern,
		DataRoot:      opts.Paths.DataRoot(),
		Manifest:      opts.Paths.ManifestPath(split),
		CheckpointDir: opts.Paths.CheckpointsDir(),
		OutputDir:     opts.Paths.OutputDir(),
		Epochs:        opts.Config.Training.Epochs,
		BatchSize:     opts.Config.Training.BatchSize,
		LearningRate:  opts.Config.Training.LearningRate,
		ExtraArgs:     extra,
	}

	r := runner.New(opts.Config.Backend.Command, opts.DryRun)
	result, err := r.Run(ctx, job)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("command", "Train").
		Str("runID", result.RunID).
		Bool("skipped", result.Skipped).
		Msg("Command finished")
	return result, nil
}
