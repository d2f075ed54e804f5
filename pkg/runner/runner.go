// Package runner launches the external training backend for the train and
// test targets. rawpipe owns the dataset plumbing; the network, training
// loop, and demosaicing itself live in the backend.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rawpipe/rawpipe/pkg/errors"
	"github.com/rawpipe/rawpipe/pkg/logging"
	"github.com/rs/zerolog"
)

// Mode selects the backend operation
type Mode string

const (
	ModeTrain Mode = "train"
	ModeTest  Mode = "test"
)

// Pattern is the color-filter-array layout the backend is asked to handle
type Pattern string

const (
	PatternBayer  Pattern = "bayer"
	PatternXtrans Pattern = "xtrans"
)

// ParsePattern validates a pattern name
func ParsePattern(s string) (Pattern, error) {
	switch Pattern(s) {
	case PatternBayer, PatternXtrans:
		return Pattern(s), nil
	default:
		return "", errors.Newf(errors.ErrInvalidInput, "unknown CFA pattern %q (want bayer or xtrans)", s)
	}
}

// Job describes one backend invocation
type Job struct {
	Mode    Mode
	Pattern Pattern

	// DataRoot is the directory manifest entries resolve against
	DataRoot string

	// Manifest is the listing file for the split being processed
	Manifest string

	// CheckpointDir receives (train) or supplies (test) model checkpoints
	CheckpointDir string

	// OutputDir receives test outputs; unused for training
	OutputDir string

	Epochs       int
	BatchSize    int
	LearningRate float64

	// ExtraArgs are appended verbatim after the built arguments
	ExtraArgs []string
}

// Result reports a completed backend run
type Result struct {
	RunID    string
	Command  string
	Args     []string
	Duration time.Duration

	// Skipped is true for dry runs
	Skipped bool
}

// Runner executes backend jobs
type Runner struct {
	command string
	dryRun  bool
	logger  zerolog.Logger
}

// New creates a Runner for the given backend command
func New(command string, dryRun bool) *Runner {
	return &Runner{
		command: command,
		dryRun:  dryRun,
		logger:  logging.GetLogger("runner"),
	}
}

// Run validates the job's inputs, builds the argument vector, and executes
// the backend. The manifest and data root must exist before launch; a
// missing individual image is the backend's concern.
func (r *Runner) Run(ctx context.Context, job Job) (*Result, error) {
	if _, err := os.Stat(job.Manifest); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrNotFound, "listing file %s does not exist", job.Manifest)
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat listing file %s", job.Manifest)
	}
	if info, err := os.Stat(job.DataRoot); err != nil || !info.IsDir() {
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat data root %s", job.DataRoot)
		}
		return nil, errors.Newf(errors.ErrNotFound, "data root %s does not exist", job.DataRoot)
	}

	runID := uuid.NewString()
	args := r.buildArgs(job, runID)

	logger := r.logger.With().
		Str("runID", runID).
		Str("mode", string(job.Mode)).
		Str("pattern", string(job.Pattern)).
		Logger()

	if r.dryRun {
		logger.Info().Str("command", r.command).Strs("args", args).Msg("Dry run - backend not launched")
		return &Result{RunID: runID, Command: r.command, Args: args, Skipped: true}, nil
	}

	if _, err := exec.LookPath(r.command); err != nil {
		return nil, errors.Wrapf(err, errors.ErrBackendNotFound, "backend command %q not found in PATH", r.command)
	}

	// Training writes checkpoints into a fresh run directory; testing reads
	// checkpoints as-is and writes outputs into a fresh run directory.
	var runDir string
	switch job.Mode {
	case ModeTrain:
		runDir = filepath.Join(job.CheckpointDir, runID)
	case ModeTest:
		runDir = filepath.Join(job.OutputDir, runID)
	}
	if runDir != "" {
		if err := os.MkdirAll(runDir, 0755); err != nil {
			return nil, errors.Wrapf(err, errors.ErrDirCreate, "failed to create run directory %s", runDir)
		}
	}

	stdout := &logWriter{logger: logger, level: zerolog.InfoLevel}
	stderr := &logWriter{logger: logger, level: zerolog.WarnLevel}
	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Info().Str("command", r.command).Strs("args", args).Msg("Launching backend")
	start := time.Now()
	err := cmd.Run()
	stdout.flush()
	stderr.flush()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrBackendExecute, "backend %s %s failed", r.command, job.Mode)
	}
	duration := time.Since(start)

	logger.Info().Dur("duration", duration).Msg("Backend finished")
	return &Result{RunID: runID, Command: r.command, Args: args, Duration: duration}, nil
}

// buildArgs assembles the backend's command line from the job
func (r *Runner) buildArgs(job Job, runID string) []string {
	args := []string{
		string(job.Mode),
		"--pattern", string(job.Pattern),
		"--data-root", job.DataRoot,
		"--filelist", job.Manifest,
	}

	if job.CheckpointDir != "" {
		if job.Mode == ModeTrain {
			args = append(args, "--checkpoint-dir", filepath.Join(job.CheckpointDir, runID))
		} else {
			args = append(args, "--checkpoint-dir", job.CheckpointDir)
		}
	}
	if job.Mode == ModeTest && job.OutputDir != "" {
		args = append(args, "--output-dir", filepath.Join(job.OutputDir, runID))
	}

	if job.Mode == ModeTrain {
		args = append(args,
			"--epochs", strconv.Itoa(job.Epochs),
			"--batch-size", strconv.Itoa(job.BatchSize),
			"--learning-rate", fmt.Sprintf("%g", job.LearningRate),
		)
	}

	return append(args, job.ExtraArgs...)
}

// logWriter forwards backend output into the structured log one line per
// message, buffering partial lines across writes.
type logWriter struct {
	logger zerolog.Logger
	level  zerolog.Level
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// flush logs any trailing output the backend did not newline-terminate
func (w *logWriter) flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *logWriter) emit(line []byte) {
	w.logger.WithLevel(w.level).Msg(strings.TrimRight(string(line), "\r"))
}
