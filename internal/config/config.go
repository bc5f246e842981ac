// Package config loads the anchorgen.yaml driver configuration.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tos-network/anchorgen/internal/logger"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "anchorgen.yaml"

type LogConfig struct {
	Format   string `yaml:"format"`  // console or json
	LogDir   string `yaml:"log_dir"` // empty logs to stderr only
	Level    string `yaml:"level"`   // debug / info / warn / error
	Compress bool   `yaml:"compress"`
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// WorkspaceConfig locates sources and outputs. Relative paths are resolved
// against Root.
type WorkspaceConfig struct {
	Root        string `yaml:"root"`
	ProgramsDir string `yaml:"programs_dir"`
	OutputDir   string `yaml:"output_dir"`
	IDLDir      string `yaml:"idl_dir"`
	AnchorToml  string `yaml:"anchor_toml"`
	DeployDir   string `yaml:"deploy_dir"`
	Cluster     string `yaml:"cluster"`
	Parallelism int    `yaml:"parallelism"`
}

type CompilerConfig struct {
	StringMaxLen int  `yaml:"string_max_len"`
	EmitIDL      bool `yaml:"emit_idl"`
}

type Config struct {
	LogConf       LogConfig       `yaml:"logger"`
	WorkspaceConf WorkspaceConfig `yaml:"workspace"`
	CompilerConf  CompilerConfig  `yaml:"compiler"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogConf: LogConfig{Format: "console", Level: "info"},
		WorkspaceConf: WorkspaceConfig{
			Root:        ".",
			ProgramsDir: "ts-programs/src",
			OutputDir:   "programs",
			IDLDir:      "target/idl",
			AnchorToml:  "Anchor.toml",
			DeployDir:   "target/deploy",
			Cluster:     "localnet",
			Parallelism: 4,
		},
		CompilerConf: CompilerConfig{StringMaxLen: 32},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is set.
func Load(path string, optional bool) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return c, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.LogConf.Format {
	case "", "console", "json":
	default:
		return errors.Errorf("logger.format must be console or json, got %q", c.LogConf.Format)
	}
	if c.WorkspaceConf.Parallelism < 1 {
		return errors.Errorf("workspace.parallelism must be at least 1, got %d", c.WorkspaceConf.Parallelism)
	}
	if c.CompilerConf.StringMaxLen < 1 {
		return errors.Errorf("compiler.string_max_len must be positive, got %d", c.CompilerConf.StringMaxLen)
	}
	if c.WorkspaceConf.ProgramsDir == "" || c.WorkspaceConf.OutputDir == "" {
		return errors.New("workspace.programs_dir and workspace.output_dir are required")
	}
	return nil
}
