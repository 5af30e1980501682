// Package config loads and validates the .jlaunch YAML file that tells the
// launcher which Java executable to run and which argument file to hand it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up from the working directory.
const FileName = ".jlaunch"

// DefaultArgsFile is the argument reference used when none is configured.
const DefaultArgsFile = "@args.txt"

// Environment variables that override the file.
const (
	EnvJavaPath = "JLAUNCH_JAVA"
	EnvArgsFile = "JLAUNCH_ARGS"
	EnvWorkDir  = "JLAUNCH_WORKDIR"
)

// Config holds the parsed .jlaunch configuration.
type Config struct {
	Version      int           `yaml:"version"`
	JavaPath     string        `yaml:"java_path" validate:"required"`
	ArgsFile     string        `yaml:"args_file" validate:"required"`         // passed verbatim, e.g. "@args.txt"
	ArgsContent  string        `yaml:"args_content"`                          // written to the referenced file before launch
	WorkDir      string        `yaml:"work_dir"`                              // relative to the config root
	Env          []string      `yaml:"env" validate:"dive,envpair"`           // KEY=VALUE added to the child environment
	RawTimeout   string        `yaml:"timeout" validate:"omitempty,duration"` // e.g. "10m"; empty means no limit
	RawMaxOutput int           `yaml:"max_output" validate:"gte=0"`           // bytes per stream; 0 means unlimited
	History      HistoryConfig `yaml:"history"`
}

// HistoryConfig controls whether and where launch records are kept.
// Nothing is recorded unless one of the fields is set.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // JSON record directory, in addition to the index
	DB      string `yaml:"db"`  // SQLite index; <user config dir>/jlaunch/history.db when empty
}

// On reports whether launches should be recorded.
func (h HistoryConfig) On() bool {
	return h.Enabled || h.Dir != "" || h.DB != ""
}

// Timeout returns the configured timeout, or zero for no limit.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.RawTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// MaxOutputBytes returns the per-stream capture cap, or zero for unlimited.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return 0
}

// ArgsFilePath returns the filesystem path named by the argument reference,
// resolved against dir when relative. The leading '@' marker is dropped.
func (c *Config) ArgsFilePath(dir string) string {
	p := strings.TrimPrefix(c.ArgsFile, "@")
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Overrides carries command-line values that take precedence over the file
// and the environment. Empty fields leave the config untouched.
type Overrides struct {
	JavaPath string
	ArgsFile string
	WorkDir  string
	Timeout  time.Duration
	History  bool // turns recording on; never turns it off
}

// Apply copies the non-empty overrides into c.
func (c *Config) Apply(o Overrides) {
	if o.JavaPath != "" {
		c.JavaPath = o.JavaPath
	}
	if o.ArgsFile != "" {
		c.ArgsFile = o.ArgsFile
	}
	if o.WorkDir != "" {
		c.WorkDir = o.WorkDir
	}
	if o.Timeout > 0 {
		c.RawTimeout = o.Timeout.String()
	}
	if o.History {
		c.History.Enabled = true
	}
}

// ApplyEnv reads the JLAUNCH_* variables through getenv and applies them.
func (c *Config) ApplyEnv(getenv func(string) string) {
	c.Apply(Overrides{
		JavaPath: getenv(EnvJavaPath),
		ArgsFile: getenv(EnvArgsFile),
		WorkDir:  getenv(EnvWorkDir),
	})
}

// LoadResult holds the parsed config and where it came from.
type LoadResult struct {
	Config *Config
	Root   string // directory containing the config file; falls back to the start dir
	Path   string // config file path; empty when defaults were used
}

// Default returns a Config with defaults filled in.
func Default() *Config {
	return &Config{ArgsFile: DefaultArgsFile}
}

// Load looks for a .jlaunch file by walking upward from dir. If none exists,
// a default Config rooted at dir is returned.
func Load(dir string) (*LoadResult, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	path, err := findConfig(abs)
	if err != nil {
		return &LoadResult{Config: Default(), Root: abs}, nil
	}
	return LoadFile(path)
}

// LoadFile reads an explicit config file. A missing file is an error.
func LoadFile(path string) (*LoadResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.ArgsFile == "" {
		cfg.ArgsFile = DefaultArgsFile
	}
	return &LoadResult{Config: cfg, Root: filepath.Dir(abs), Path: abs}, nil
}

// findConfig walks upward from dir looking for a .jlaunch file.
func findConfig(dir string) (string, error) {
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
