package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexraputa/agent-skills-sub001/config"
)

// compileFlags are the flags shared by compile and watch.
type compileFlags struct {
	strict      bool
	format      string
	output      string
	report      string
	workers     int
	timeout     string
	metricsFile string
	natsURL     string
	subject     string
}

func (f *compileFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Treat any per-document error or conflict as fatal")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Manifest format (json, yaml, table, markdown)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write the manifest to this file instead of stdout")
	cmd.Flags().StringVar(&f.report, "report", "", "Report format on stderr (text, json)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Number of documents parsed concurrently")
	cmd.Flags().StringVar(&f.timeout, "document-timeout", "", "Per-document read timeout (e.g. 5s)")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after each run")
	cmd.Flags().StringVar(&f.natsURL, "nats-url", "", "Publish the manifest to this NATS server")
	cmd.Flags().StringVar(&f.subject, "subject", "", "NATS subject for published manifests")
}

// overrides builds a config layer holding only the flags that were set.
func (f *compileFlags) overrides(cmd *cobra.Command) (*config.Config, error) {
	o := &config.Config{
		Strict:  f.strict,
		Format:  f.format,
		Output:  f.output,
		Report:  f.report,
		Workers: f.workers,
		Publish: config.PublishConfig{NATSURL: f.natsURL, Subject: f.subject},
		Metrics: config.MetricsConfig{File: f.metricsFile},
	}
	if cmd.Flags().Changed("document-timeout") {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return nil, fmt.Errorf("--document-timeout: %w", err)
		}
		o.DocumentTimeout = d
	}
	return o, nil
}

// loadConfig resolves the layered configuration for rulesDir and the logger
// to use with it. The --log-level flag wins over log_level in config files.
func loadConfig(cmd *cobra.Command, g *globalFlags, rulesDir string, overrides *config.Config) (*config.Config, *slog.Logger, error) {
	logger := newLogger(g.logLevel)

	info, err := os.Stat(rulesDir)
	if err != nil {
		return nil, nil, fmt.Errorf("stat rules directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("not a directory: %s", rulesDir)
	}

	cfg, err := config.NewLoader(logger).Load(rulesDir, g.configPath, overrides)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if !cmd.Flags().Changed("log-level") {
		logger = newLogger(cfg.LogLevel)
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
