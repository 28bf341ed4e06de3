package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.SectionsFile != "_sections.md" {
		t.Errorf("expected default sections file _sections.md, got %s", cfg.SectionsFile)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format json, got %s", cfg.Format)
	}
	if cfg.DocumentTimeout != 5*time.Second {
		t.Errorf("expected default document timeout 5s, got %v", cfg.DocumentTimeout)
	}
	if cfg.Publish.Subject != "rules.manifest" {
		t.Errorf("expected default subject rules.manifest, got %s", cfg.Publish.Subject)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing sections file",
			modify:  func(c *Config) { c.SectionsFile = " " },
			wantErr: true,
		},
		{
			name:    "no include patterns",
			modify:  func(c *Config) { c.Include = nil },
			wantErr: true,
		},
		{
			name:    "bad glob",
			modify:  func(c *Config) { c.Exclude = []string{"[unclosed"} },
			wantErr: true,
		},
		{
			name:    "zero workers",
			modify:  func(c *Config) { c.Workers = 0 },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.DocumentTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "unknown format",
			modify:  func(c *Config) { c.Format = "xml" },
			wantErr: true,
		},
		{
			name:    "format alias",
			modify:  func(c *Config) { c.Format = "md" },
			wantErr: false,
		},
		{
			name:    "unknown report format",
			modify:  func(c *Config) { c.Report = "html" },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.LogLevel = "trace" },
			wantErr: true,
		},
		{
			name:    "alias to unknown tier",
			modify:  func(c *Config) { c.ImpactAliases = map[string]string{"urgent": "SEVERE"} },
			wantErr: true,
		},
		{
			name:    "alias to known tier",
			modify:  func(c *Config) { c.ImpactAliases = map[string]string{"urgent": "CRITICAL"} },
			wantErr: false,
		},
		{
			name:    "bad debounce",
			modify:  func(c *Config) { c.Watch.DebounceDelay = "soon" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "rulec.yaml")
	t.Setenv("RULEC_TEST_SUBJECT", "corpus.rules")

	content := `
sections_file: sections.md
workers: 3
document_timeout: 2s
format: yaml
impact_aliases:
  urgent: CRITICAL
publish:
  nats_url: ${RULEC_TEST_NATS:-nats://localhost:4222}
  subject: ${RULEC_TEST_SUBJECT}
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.SectionsFile != "sections.md" {
		t.Errorf("expected sections file sections.md, got %s", cfg.SectionsFile)
	}
	if cfg.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Workers)
	}
	if cfg.DocumentTimeout != 2*time.Second {
		t.Errorf("expected timeout 2s, got %v", cfg.DocumentTimeout)
	}
	if cfg.Format != "yaml" {
		t.Errorf("expected format yaml, got %s", cfg.Format)
	}
	if cfg.ImpactAliases["urgent"] != "CRITICAL" {
		t.Errorf("expected alias urgent=CRITICAL, got %v", cfg.ImpactAliases)
	}
	if cfg.Publish.NATSURL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.Publish.NATSURL)
	}
	if cfg.Publish.Subject != "corpus.rules" {
		t.Errorf("expected subject from env, got %s", cfg.Publish.Subject)
	}
	// Untouched fields keep defaults.
	if len(cfg.Include) != 4 {
		t.Errorf("expected default include patterns, got %v", cfg.Include)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Format:        "table",
		Strict:        true,
		ImpactAliases: map[string]string{"urgent": "CRITICAL"},
		Metrics:       MetricsConfig{File: "/tmp/rulec.prom"},
	}

	base.Merge(override)

	if base.Format != "table" {
		t.Errorf("expected merged format table, got %s", base.Format)
	}
	if !base.Strict {
		t.Error("expected strict after merge")
	}
	if base.ImpactAliases["urgent"] != "CRITICAL" {
		t.Errorf("expected merged alias, got %v", base.ImpactAliases)
	}
	if base.Metrics.File != "/tmp/rulec.prom" {
		t.Errorf("expected metrics file, got %s", base.Metrics.File)
	}
	if base.SectionsFile != "_sections.md" {
		t.Errorf("expected sections file preserved, got %s", base.SectionsFile)
	}

	base.Merge(nil)
	if base.Format != "table" {
		t.Error("merging nil must not change config")
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Format = "markdown"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Format != "markdown" {
		t.Errorf("expected format markdown, got %s", loaded.Format)
	}
}

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("RULEC_SET", "value")
	t.Setenv("RULEC_EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"${RULEC_SET}", "value"},
		{"${RULEC_SET:-other}", "value"},
		{"${RULEC_EMPTY:-fallback}", "fallback"},
		{"${RULEC_UNSET_VAR:-a:b}", "a:b"},
		{"${RULEC_UNSET_VAR}", ""},
		{"plain $HOME text", "plain $HOME text"},
	}
	for _, tt := range tests {
		if got := ExpandEnvWithDefaults(tt.in); got != tt.want {
			t.Errorf("ExpandEnvWithDefaults(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoaderLayering(t *testing.T) {
	home := t.TempDir()
	userPath := filepath.Join(home, UserConfigDir, UserConfigFile)
	if err := os.MkdirAll(filepath.Dir(userPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(userPath, []byte("format: yaml\nworkers: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	project := t.TempDir()
	rulesDir := filepath.Join(project, "rules")
	if err := os.MkdirAll(rulesDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte("workers: 4\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	l.homeDir = func() (string, error) { return home, nil }

	cfg, err := l.Load(rulesDir, "", &Config{Strict: true})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Format != "yaml" {
		t.Errorf("expected user format yaml, got %s", cfg.Format)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected project workers 4, got %d", cfg.Workers)
	}
	if !cfg.Strict {
		t.Error("expected override strict")
	}

	if _, err := l.Load(rulesDir, filepath.Join(project, "missing.yaml"), nil); err == nil {
		t.Error("expected error for missing explicit config")
	}
}
