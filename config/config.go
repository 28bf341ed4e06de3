// Package config provides configuration loading and management for rulec.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/alexraputa/agent-skills-sub001/compiler"
	"github.com/alexraputa/agent-skills-sub001/manifest"
	"github.com/alexraputa/agent-skills-sub001/rules"
)

// Config represents the complete rulec configuration
type Config struct {
	// SectionsFile is the section definitions document, relative to the rules directory.
	SectionsFile string `yaml:"sections_file,omitempty"`

	// Include and Exclude select rule documents with doublestar patterns.
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`

	// Workers bounds parallel document parsing.
	Workers int `yaml:"workers,omitempty"`

	// DocumentTimeout bounds reading a single document.
	DocumentTimeout time.Duration `yaml:"document_timeout,omitempty"`

	// Strict turns any per-document error or conflict into a fatal exit.
	Strict bool `yaml:"strict,omitempty"`

	// Format is the manifest output format.
	Format string `yaml:"format,omitempty"`

	// Output is the manifest output path; empty writes to stdout.
	Output string `yaml:"output,omitempty"`

	// Report is the report format written to stderr (text or json).
	Report string `yaml:"report,omitempty"`

	// ListDelimiter separates values of list-valued metadata such as tags.
	ListDelimiter string `yaml:"list_delimiter,omitempty"`

	// ImpactAliases maps extra impact synonyms to canonical tiers.
	ImpactAliases map[string]string `yaml:"impact_aliases,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`

	Publish PublishConfig        `yaml:"publish,omitempty"`
	Watch   compiler.WatchConfig `yaml:"watch,omitempty"`
	Metrics MetricsConfig        `yaml:"metrics,omitempty"`
}

// PublishConfig configures manifest publishing over NATS
type PublishConfig struct {
	// NATSURL enables publishing when set.
	NATSURL string `yaml:"nats_url,omitempty"`
	// Subject is the NATS subject (default: rules.manifest)
	Subject string `yaml:"subject,omitempty"`
}

// MetricsConfig configures metrics export
type MetricsConfig struct {
	// File receives a Prometheus textfile after each run.
	File string `yaml:"file,omitempty"`
	// Addr serves /metrics in watch mode.
	Addr string `yaml:"addr,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SectionsFile:    "_sections.md",
		Include:         []string{"**/*.md", "**/*.markdown", "**/*.html", "**/*.htm"},
		Exclude:         []string{"**/_*", "**/README.md"},
		Workers:         runtime.NumCPU(),
		DocumentTimeout: 5 * time.Second,
		Format:          string(manifest.FormatJSON),
		Report:          "text",
		ListDelimiter:   ",",
		LogLevel:        "info",
		Publish: PublishConfig{
			Subject: "rules.manifest",
		},
		Watch: compiler.DefaultWatchConfig(),
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SectionsFile) == "" {
		return fmt.Errorf("sections_file is required")
	}
	if len(c.Include) == 0 {
		return fmt.Errorf("include must list at least one pattern")
	}
	for _, p := range append(append([]string{}, c.Include...), c.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.DocumentTimeout <= 0 {
		return fmt.Errorf("document_timeout must be positive")
	}
	if _, err := manifest.ParseFormat(c.Format); err != nil {
		return err
	}
	switch c.Report {
	case "text", "json":
	default:
		return fmt.Errorf("report must be text or json, got %q", c.Report)
	}
	if c.ListDelimiter == "" {
		return fmt.Errorf("list_delimiter is required")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if _, err := rules.NewImpactNormalizer(c.ImpactAliases); err != nil {
		return err
	}
	if d := c.Watch.DebounceDelay; d != "" {
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("watch.debounce_delay: %w", err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	fileConfig, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	config.Merge(fileConfig)
	return config, nil
}

// decodeFile reads a YAML file into an otherwise empty Config, expanding
// ${VAR:-default} references first.
func decodeFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal([]byte(ExpandEnvWithDefaults(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.SectionsFile != "" {
		c.SectionsFile = other.SectionsFile
	}
	if len(other.Include) > 0 {
		c.Include = other.Include
	}
	if len(other.Exclude) > 0 {
		c.Exclude = other.Exclude
	}
	if other.Workers != 0 {
		c.Workers = other.Workers
	}
	if other.DocumentTimeout != 0 {
		c.DocumentTimeout = other.DocumentTimeout
	}
	if other.Strict {
		c.Strict = true
	}
	if other.Format != "" {
		c.Format = other.Format
	}
	if other.Output != "" {
		c.Output = other.Output
	}
	if other.Report != "" {
		c.Report = other.Report
	}
	if other.ListDelimiter != "" {
		c.ListDelimiter = other.ListDelimiter
	}
	if len(other.ImpactAliases) > 0 {
		if c.ImpactAliases == nil {
			c.ImpactAliases = make(map[string]string, len(other.ImpactAliases))
		}
		for k, v := range other.ImpactAliases {
			c.ImpactAliases[k] = v
		}
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}

	// Publish
	if other.Publish.NATSURL != "" {
		c.Publish.NATSURL = other.Publish.NATSURL
	}
	if other.Publish.Subject != "" {
		c.Publish.Subject = other.Publish.Subject
	}

	// Watch
	if other.Watch.DebounceDelay != "" {
		c.Watch.DebounceDelay = other.Watch.DebounceDelay
	}
	if len(other.Watch.FileExtensions) > 0 {
		c.Watch.FileExtensions = other.Watch.FileExtensions
	}
	if len(other.Watch.ExcludeDirs) > 0 {
		c.Watch.ExcludeDirs = other.Watch.ExcludeDirs
	}

	// Metrics
	if other.Metrics.File != "" {
		c.Metrics.File = other.Metrics.File
	}
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}

// ToOptions converts the configuration into compiler options.
func (c *Config) ToOptions(logger *slog.Logger, metrics *compiler.Metrics) compiler.Options {
	return compiler.Options{
		SectionsFile:    c.SectionsFile,
		Include:         c.Include,
		Exclude:         c.Exclude,
		Workers:         c.Workers,
		DocumentTimeout: c.DocumentTimeout,
		ImpactAliases:   c.ImpactAliases,
		ListDelimiter:   c.ListDelimiter,
		Logger:          logger,
		Metrics:         metrics,
	}
}
