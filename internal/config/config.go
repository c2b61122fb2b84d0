// Package config holds the settings for a conversion run.
//
// Values are layered defaults < YAML file < CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds all configurable paths and conversion settings.
type Config struct {
	// Paths
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	// Conversion settings
	FaceSize    int    `yaml:"face_size"`
	Workers     int    `yaml:"workers"`
	Naming      string `yaml:"naming"`
	Format      string `yaml:"format"`
	Orientation string `yaml:"orientation"`
	Atlas       string `yaml:"atlas"`
	Thumbnail   int    `yaml:"thumbnail"`
	ClearOutput bool   `yaml:"clear_output"`
	JPEGQuality int    `yaml:"jpeg_quality"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns a Config with every setting at its default.
func Default() Config {
	return Config{
		Naming:      "short",
		Orientation: "native",
		JPEGQuality: 95,
		Logging:     LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config file over the defaults.
// Fields not set in the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when path does not exist.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// SaveTo writes the config as YAML, creating parent directories.
func (c Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create dir for %s: %w", path, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "equi2cube", "config.yaml")
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".equi2cube", "config.yaml")
	}
	return filepath.Join(dir, "equi2cube", "config.yaml")
}

// Flags holds CLI flag values that override config file settings.
// Zero values mean "not given".
type Flags struct {
	Input       string
	Output      string
	FaceSize    int
	Workers     int
	Naming      string
	Format      string
	Orientation string
	Atlas       string
	Thumbnail   int
	ClearOutput bool
	JPEGQuality int
	LogLevel    string
	LogFile     string
}

// Apply copies the flags that were given over the config. It fills in no
// derived values, so the result is what --save-config persists.
func (c *Config) Apply(flags Flags) {
	if flags.Input != "" {
		c.Input = flags.Input
	}
	if flags.Output != "" {
		c.Output = flags.Output
	}
	if flags.FaceSize > 0 {
		c.FaceSize = flags.FaceSize
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Naming != "" {
		c.Naming = flags.Naming
	}
	if flags.Format != "" {
		c.Format = flags.Format
	}
	if flags.Orientation != "" {
		c.Orientation = flags.Orientation
	}
	if flags.Atlas != "" {
		c.Atlas = flags.Atlas
	}
	if flags.Thumbnail > 0 {
		c.Thumbnail = flags.Thumbnail
	}
	if flags.ClearOutput {
		c.ClearOutput = true
	}
	if flags.JPEGQuality > 0 {
		c.JPEGQuality = flags.JPEGQuality
	}
	if flags.LogLevel != "" {
		c.Logging.Level = flags.LogLevel
	}
	if flags.LogFile != "" {
		c.Logging.File = flags.LogFile
	}
}

// Resolve applies flag overrides and fills in derived defaults.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	c.Apply(flags)

	// Output next to the input when not given
	if c.Output == "" && c.Input != "" {
		base := c.Input
		if info, err := os.Stat(base); err == nil && !info.IsDir() {
			base = filepath.Dir(base)
		}
		c.Output = filepath.Join(base, "cubemap")
	}

	if c.Format != "" && !strings.HasPrefix(c.Format, ".") {
		c.Format = "." + c.Format
	}
	c.Format = strings.ToLower(c.Format)

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.JPEGQuality <= 0 {
		c.JPEGQuality = 95
	}
}

// Validate checks the resolved config.
func (c Config) Validate() error {
	var problems []string
	if c.Input == "" {
		problems = append(problems, "input is required")
	}
	if c.Output == "" {
		problems = append(problems, "output is required")
	}
	if c.FaceSize < 0 {
		problems = append(problems, fmt.Sprintf("face_size %d is negative", c.FaceSize))
	}
	if c.Workers < 1 {
		problems = append(problems, fmt.Sprintf("workers %d must be at least 1", c.Workers))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		problems = append(problems, fmt.Sprintf("jpeg_quality %d outside 1-100", c.JPEGQuality))
	}
	if c.Thumbnail < 0 {
		problems = append(problems, fmt.Sprintf("thumbnail %d is negative", c.Thumbnail))
	}
	if !oneOf(c.Naming, "short", "long") {
		problems = append(problems, fmt.Sprintf("naming %q: want short or long", c.Naming))
	}
	if !oneOf(c.Orientation, "native", "rotated", "mirrored") {
		problems = append(problems, fmt.Sprintf("orientation %q: want native, rotated or mirrored", c.Orientation))
	}
	if !oneOf(c.Atlas, "", "cross", "strip") {
		problems = append(problems, fmt.Sprintf("atlas %q: want cross or strip", c.Atlas))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
