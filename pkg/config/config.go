// Package config loads rawpipe configuration using koanf.
//
// Precedence, lowest to highest: embedded defaults, the user config file,
// a rawpipe.toml in the current directory, RAWPIPE_* environment variables.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rawpipe/rawpipe/pkg/errors"
)

// LocalConfigFile is the project-local config file name, checked in cwd
const LocalConfigFile = "rawpipe.toml"

// EnvPrefix is the prefix for environment variable overrides,
// e.g. RAWPIPE_BACKEND_COMMAND overrides backend.command
const EnvPrefix = "RAWPIPE_"

// Dataset describes where the dataset comes from and how it is laid out
type Dataset struct {
	URL      string   `koanf:"url" toml:"url"`
	SHA256   string   `koanf:"sha256" toml:"sha256"`
	Splits   []string `koanf:"splits" toml:"splits"`
	DataRoot string   `koanf:"data_root" toml:"data_root"`
}

// Backend describes the external training backend
type Backend struct {
	Command string   `koanf:"command" toml:"command"`
	Args    []string `koanf:"args" toml:"args"`
}

// Training holds parameters passed through to the backend
type Training struct {
	Epochs       int     `koanf:"epochs" toml:"epochs"`
	BatchSize    int     `koanf:"batch_size" toml:"batch_size"`
	LearningRate float64 `koanf:"learning_rate" toml:"learning_rate"`
}

// Config is the fully merged rawpipe configuration
type Config struct {
	Dataset  Dataset  `koanf:"dataset" toml:"dataset"`
	Backend  Backend  `koanf:"backend" toml:"backend"`
	Training Training `koanf:"training" toml:"training"`
}

// Load merges all configuration sources and unmarshals them.
// userConfigPath is the user config file location (usually
// paths.ConfigFilePath()); it is skipped when it does not exist.
func Load(userConfigPath string) (*Config, error) {
	k, err := loadKoanf(userConfigPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadKoanf(userConfigPath string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load defaults")
	}

	// 2. User config file, if present
	if userConfigPath != "" {
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := k.Load(file.Provider(userConfigPath), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config from %s", userConfigPath)
			}
		}
	}

	// 3. Project-local config file, if present
	if _, err := os.Stat(LocalConfigFile); err == nil {
		if err := k.Load(file.Provider(LocalConfigFile), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config from %s", LocalConfigFile)
		}
	}

	// 4. Environment overrides: RAWPIPE_TRAINING_EPOCHS -> training.epochs
	// The data-root and XDG override variables belong to pkg/paths, not here.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		switch s {
		case "DATA_ROOT", "DATA_DIR", "CONFIG_DIR", "CACHE_DIR":
			return ""
		}
		return strings.Replace(strings.ToLower(s), "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
	}

	return k, nil
}

func (c *Config) validate() error {
	if c.Dataset.URL == "" {
		return errors.New(errors.ErrConfigValid, "dataset.url must not be empty")
	}
	if len(c.Dataset.Splits) == 0 {
		return errors.New(errors.ErrConfigValid, "dataset.splits must name at least one split")
	}
	if c.Backend.Command == "" {
		return errors.New(errors.ErrConfigValid, "backend.command must not be empty")
	}
	if c.Training.Epochs <= 0 {
		return errors.New(errors.ErrConfigValid, "training.epochs must be positive")
	}
	if c.Training.BatchSize <= 0 {
		return errors.New(errors.ErrConfigValid, "training.batch_size must be positive")
	}
	if c.Training.LearningRate <= 0 {
		return errors.New(errors.ErrConfigValid, "training.learning_rate must be positive")
	}
	return nil
}

// HasSplit reports whether the configuration names the given split
func (c *Config) HasSplit(split string) bool {
	for _, s := range c.Dataset.Splits {
		if s == split {
			return true
		}
	}
	return false
}
