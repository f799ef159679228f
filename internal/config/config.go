// Package config loads unref settings from .unref/config.{json,yaml,toml}
// and UNREF_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"unref/internal/deadcode"
	"unref/internal/errors"
	"unref/internal/report"
	"unref/internal/slogutil"
)

// CurrentVersion is the config schema version.
const CurrentVersion = 1

// Dir is the per-project settings directory.
const Dir = ".unref"

const envPrefix = "UNREF"

// Config represents the complete unref configuration
type Config struct {
	Version int `json:"version" yaml:"version" mapstructure:"version"`

	Analysis AnalysisConfig `json:"analysis" yaml:"analysis" mapstructure:"analysis"`
	Files    FilesConfig    `json:"files" yaml:"files" mapstructure:"files"`
	Output   OutputConfig   `json:"output" yaml:"output" mapstructure:"output"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`

	source string
}

// AnalysisConfig controls which declarations are checked and how.
type AnalysisConfig struct {
	// Kinds are declaration kind names, or "all".
	Kinds []string `json:"kinds" yaml:"kinds" mapstructure:"kinds"`
	// MaxInFlight bounds concurrent classifications; 0 picks a default and
	// a negative value removes the bound.
	MaxInFlight int  `json:"maxInFlight" yaml:"maxInFlight" mapstructure:"maxInFlight"`
	FileWorkers int  `json:"fileWorkers" yaml:"fileWorkers" mapstructure:"fileWorkers"`
	Cascade     bool `json:"cascade" yaml:"cascade" mapstructure:"cascade"`
	// SkipGenerated drops declarations in generated files.
	SkipGenerated bool `json:"skipGenerated" yaml:"skipGenerated" mapstructure:"skipGenerated"`
	// SkipTests drops declarations in test files.
	SkipTests bool `json:"skipTests" yaml:"skipTests" mapstructure:"skipTests"`
	// Exclude holds globs matched against paths and declaration names.
	Exclude []string `json:"exclude" yaml:"exclude" mapstructure:"exclude"`
}

// FilesConfig selects the analyzed files by codebase-relative path.
type FilesConfig struct {
	Include []string `json:"include" yaml:"include" mapstructure:"include"`
	Exclude []string `json:"exclude" yaml:"exclude" mapstructure:"exclude"`
}

// OutputConfig contains report settings
type OutputConfig struct {
	Format   string `json:"format" yaml:"format" mapstructure:"format"`
	Baseline string `json:"baseline" yaml:"baseline" mapstructure:"baseline"`
	SQLite   string `json:"sqlite" yaml:"sqlite" mapstructure:"sqlite"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`
	File       string `json:"file" yaml:"file" mapstructure:"file"`
	FileLevel  string `json:"fileLevel" yaml:"fileLevel" mapstructure:"fileLevel"`
	MaxSize    string `json:"maxSize" yaml:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Analysis: AnalysisConfig{
			Kinds:         []string{string(deadcode.KindMethod), string(deadcode.KindProperty)},
			Cascade:       true,
			SkipGenerated: true,
			Exclude:       []string{},
		},
		Files: FilesConfig{
			Include: []string{},
			Exclude: []string{},
		},
		Output: OutputConfig{
			Format: string(report.FormatHuman),
		},
		Logging: LoggingConfig{
			Level:      "warn",
			FileLevel:  "debug",
			MaxBackups: 3,
		},
	}
}

// newViper returns a viper instance carrying every default, so that
// environment overrides apply to keys missing from the file.
func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("version", d.Version)
	v.SetDefault("analysis.kinds", d.Analysis.Kinds)
	v.SetDefault("analysis.maxInFlight", d.Analysis.MaxInFlight)
	v.SetDefault("analysis.fileWorkers", d.Analysis.FileWorkers)
	v.SetDefault("analysis.cascade", d.Analysis.Cascade)
	v.SetDefault("analysis.skipGenerated", d.Analysis.SkipGenerated)
	v.SetDefault("analysis.skipTests", d.Analysis.SkipTests)
	v.SetDefault("analysis.exclude", d.Analysis.Exclude)
	v.SetDefault("files.include", d.Files.Include)
	v.SetDefault("files.exclude", d.Files.Exclude)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.baseline", d.Output.Baseline)
	v.SetDefault("output.sqlite", d.Output.SQLite)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.fileLevel", d.Logging.FileLevel)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)

	// analysis.maxInFlight -> UNREF_ANALYSIS_MAXINFLIGHT
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// EnvFile holds UNREF_* variables next to the configuration file.
const EnvFile = ".env"

// LoadConfig loads configuration from <dir>/.unref/config.{json,yaml,toml}.
// A missing file yields the defaults with environment overrides applied.
// Variables from <dir>/.unref/.env apply unless the environment sets them.
func LoadConfig(dir string) (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(dir, Dir))
	if err := applyEnvFile(v, filepath.Join(dir, Dir, EnvFile)); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, configError("Failed to read configuration", err)
		}
	}
	return unmarshal(v)
}

// LoadConfigFile loads configuration from an explicit file.
func LoadConfigFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, configError(fmt.Sprintf("Failed to read configuration %s", path), err)
	}
	return unmarshal(v)
}

func applyEnvFile(v *viper.Viper, path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return configError(fmt.Sprintf("Failed to read %s", path), err)
	}
	for name, value := range vars {
		suffix, ok := strings.CutPrefix(name, envPrefix+"_")
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(name); set {
			continue
		}
		v.Set(strings.ToLower(strings.ReplaceAll(suffix, "_", ".")), value)
	}
	return nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configError("Failed to decode configuration", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		cfg.source = used
	}
	return &cfg, nil
}

// Save writes the configuration to <dir>/.unref/config.json
func (c *Config) Save(dir string) (string, error) {
	configDir := filepath.Join(dir, Dir)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", err
	}
	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	data = append(data, '\n')
	return configPath, os.WriteFile(configPath, data, 0o644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return configError("Invalid configuration", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if _, err := deadcode.ParseKinds(c.Analysis.Kinds); err != nil {
		return &ConfigError{Field: "analysis.kinds", Message: err.Error()}
	}
	if c.Analysis.FileWorkers < 0 {
		return &ConfigError{Field: "analysis.fileWorkers", Message: "must not be negative"}
	}
	for field, patterns := range map[string][]string{
		"analysis.exclude": c.Analysis.Exclude,
		"files.include":    c.Files.Include,
		"files.exclude":    c.Files.Exclude,
	} {
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				return &ConfigError{Field: field, Message: fmt.Sprintf("invalid glob %q", p)}
			}
		}
	}
	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		return &ConfigError{Field: "output.format", Message: err.Error()}
	}
	if !slogutil.ValidLevel(c.Logging.Level) {
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	if c.Logging.File != "" && !slogutil.ValidLevel(c.Logging.FileLevel) {
		return &ConfigError{Field: "logging.fileLevel", Message: fmt.Sprintf("unknown level %q", c.Logging.FileLevel)}
	}
	if _, err := slogutil.ParseSize(c.Logging.MaxSize); err != nil {
		return &ConfigError{Field: "logging.maxSize", Message: err.Error()}
	}
	return nil
}

// Kinds returns the configured kinds as a set.
func (c *Config) Kinds() deadcode.KindSet {
	kinds, err := deadcode.ParseKinds(c.Analysis.Kinds)
	if err != nil {
		return deadcode.DefaultKinds()
	}
	return kinds
}

// Source returns the file the configuration was read from, if any.
func (c *Config) Source() string {
	return c.source
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

func configError(message string, cause error) error {
	return errors.NewUnrefError(
		errors.ConfigInvalid,
		message,
		cause,
		errors.GetSuggestedFixes(errors.ConfigInvalid),
	)
}
