package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/cvfs/internal/util"
	"gopkg.in/yaml.v3"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	// DefaultCapacity is the size ceiling of a freshly created disk
	DefaultCapacity = 255

	// DefaultStorePath is the fixed location used by store and load
	DefaultStorePath = "storedCVFS.json"

	DefaultLogLvl = util.InfoLevel

	// DefaultRollbackFailed keeps the pre-command snapshot of a failed command on the undo stack
	DefaultRollbackFailed = false

	DefaultPrompt = "$ "

	DefaultFsName = "cvfs"
	DefaultName   = "cvfs"

	// DefaultAttrTimeout is the attribute cache timeout in seconds for the mount.
	// Kept short since undo/redo can swap the whole tree.
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds for the mount
	DefaultEntryTimeout = 1.0
)

// Log verbosity as passed on the command line or in config files
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Config contains runtime configuration values for the virtual file system.
type Config struct {
	MountOptions
	LogLvl         util.LogLevel
	Capacity       int     // Capacity of the initial disk (Default 255)
	StorePath      string  // File written by store and read by load (Default storedCVFS.json)
	RollbackFailed bool    // Drop the snapshot pushed by a command that then failed (Default false)
	Prompt         string  // Interpreter prompt (Default "$ ")
	AttrTimeout    float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout   float64 // Directory entry cache timeout in seconds (Default 1.0)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	FsName         *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name           *string  `yaml:"name,omitempty" json:"name,omitempty"`
	LogLvl         *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"` // 1 (error) to 5 (trace)
	Capacity       *int     `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	StorePath      *string  `yaml:"store_path,omitempty" json:"store_path,omitempty"`
	RollbackFailed *bool    `yaml:"rollback_failed,omitempty" json:"rollback_failed,omitempty"`
	Prompt         *string  `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	AttrTimeout    *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout   *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
}

// NewConfig creates a Config from defaults with override applied. A nil
// override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:         DefaultLogLvl,
		Capacity:       DefaultCapacity,
		StorePath:      DefaultStorePath,
		RollbackFailed: DefaultRollbackFailed,
		Prompt:         DefaultPrompt,
		AttrTimeout:    DefaultAttrTimeout,
		EntryTimeout:   DefaultEntryTimeout,
	}
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.LogLvl != nil {
		c.LogLvl = VerboseToLogLevel(*override.LogLvl)
	}
	if override.Capacity != nil {
		c.Capacity = *override.Capacity
	}
	if override.StorePath != nil {
		c.StorePath = *override.StorePath
	}
	if override.RollbackFailed != nil {
		c.RollbackFailed = *override.RollbackFailed
	}
	if override.Prompt != nil {
		c.Prompt = *override.Prompt
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
}

// VerboseToLogLevel converts a 1 (error) to 5 (trace) verbosity into a
// [util.LogLevel]. Out of range values are clamped.
func VerboseToLogLevel(verbose int) util.LogLevel {
	verbose = max(ErrorVerbose, min(verbose, TraceVerbose))
	lvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return lvls[verbose-1]
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
