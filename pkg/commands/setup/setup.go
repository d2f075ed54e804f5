package setup

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/rawpipe/rawpipe/pkg/config"
	"github.com/rawpipe/rawpipe/pkg/errors"
	"github.com/rawpipe/rawpipe/pkg/logging"
	"github.com/rawpipe/rawpipe/pkg/paths"
)

// Options defines the options for the Setup command.
type Options struct {
	// Paths provides the directory layout to create
	Paths paths.Paths

	// Config is the merged configuration, used to locate the backend and,
	// with Effective, to render the generated config file
	Config *config.Config

	// Effective writes the merged configuration instead of the commented
	// defaults when generating the config file
	Effective bool

	// Force overwrites an existing config file
	Force bool
}

// Result reports what Setup created or found in place.
type Result struct {
	ConfigFile    string
	ConfigCreated bool
	CreatedDirs   []string
	BackendFound  bool
	BackendPath   string
}

// Setup prepares the working layout: the config file, the data root, and
// the checkpoint and output directories. It also reports whether the
// configured backend command is reachable.
func Setup(opts Options) (*Result, error) {
	log := logging.GetLogger("core.commands")
	log.Debug().Str("command", "Setup").Msg("Executing command")

	result := &Result{ConfigFile: opts.Paths.ConfigFilePath()}

	for _, dir := range []string{
		opts.Paths.ConfigDir(),
		opts.Paths.DataRoot(),
		opts.Paths.DownloadsDir(),
		opts.Paths.CheckpointsDir(),
		opts.Paths.OutputDir(),
	} {
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", dir)
		}
		result.CreatedDirs = append(result.CreatedDirs, dir)
	}

	created, err := writeConfigFile(opts, result.ConfigFile)
	if err != nil {
		return nil, err
	}
	result.ConfigCreated = created

	if path, err := exec.LookPath(opts.Config.Backend.Command); err == nil {
		result.BackendFound = true
		result.BackendPath = path
	}

	log.Info().
		Str("command", "Setup").
		Int("createdDirs", len(result.CreatedDirs)).
		Bool("configCreated", result.ConfigCreated).
		Bool("backendFound", result.BackendFound).
		Msg("Command finished")
	return result, nil
}

func writeConfigFile(opts Options, configFile string) (bool, error) {
	if _, err := os.Stat(configFile); err == nil && !opts.Force {
		return false, nil
	}

	var content []byte
	if opts.Effective {
		rendered, err := toml.Marshal(opts.Config)
		if err != nil {
			return false, errors.Wrap(err, errors.ErrInternal, "failed to render effective configuration")
		}
		content = rendered
	} else {
		content = []byte(config.GetDefaultConfigContent())
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return false, errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", filepath.Dir(configFile))
	}
	if err := os.WriteFile(configFile, content, 0644); err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "failed to write config file %s", configFile)
	}
	return true, nil
}
