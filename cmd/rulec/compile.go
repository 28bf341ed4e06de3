package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alexraputa/agent-skills-sub001/compiler"
	"github.com/alexraputa/agent-skills-sub001/config"
	"github.com/alexraputa/agent-skills-sub001/manifest"
	"github.com/alexraputa/agent-skills-sub001/publish"
)

func compileCmd(g *globalFlags) *cobra.Command {
	f := &compileFlags{}

	cmd := &cobra.Command{
		Use:   "compile <rules-dir>",
		Short: "Compile a rules directory into a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := f.overrides(cmd)
			if err != nil {
				return &exitError{code: compiler.ExitFatal, err: err}
			}
			cfg, logger, err := loadConfig(cmd, g, args[0], overrides)
			if err != nil {
				return &exitError{code: compiler.ExitFatal, err: err}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			metrics := compiler.NewMetrics()
			r := &runner{
				cfg:     cfg,
				logger:  logger,
				metrics: metrics,
				stdout:  cmd.OutOrStdout(),
				stderr:  cmd.ErrOrStderr(),
			}
			if cfg.Publish.NATSURL != "" {
				pub, err := publish.Connect(cfg.Publish.NATSURL, logger)
				if err != nil {
					return &exitError{code: compiler.ExitFatal, err: err}
				}
				defer func() { _ = pub.Close() }()
				r.publisher = pub
			}

			code, err := r.compile(ctx, args[0])
			if code != compiler.ExitOK || err != nil {
				return &exitError{code: code, err: err}
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

// runner performs one compilation with its configured sinks.
type runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *compiler.Metrics
	publisher publish.Publisher
	stdout    io.Writer
	stderr    io.Writer
}

// compile runs a compilation of rulesDir, emits the manifest, report,
// metrics and publication, and returns the exit code for the run.
func (r *runner) compile(ctx context.Context, rulesDir string) (int, error) {
	format, err := manifest.ParseFormat(r.cfg.Format)
	if err != nil {
		return compiler.ExitFatal, err
	}

	c, err := compiler.New(r.cfg.ToOptions(r.logger, r.metrics))
	if err != nil {
		return compiler.ExitFatal, err
	}

	res, runErr := c.Run(ctx, os.DirFS(rulesDir))

	if err := compiler.WriteReport(r.stderr, res, compiler.ReportFormat(r.cfg.Report)); err != nil {
		r.logger.Warn("Failed to write report", "error", err)
	}
	if r.cfg.Metrics.File != "" {
		if err := r.metrics.WriteTextfile(r.cfg.Metrics.File); err != nil {
			r.logger.Warn("Failed to write metrics textfile", "path", r.cfg.Metrics.File, "error", err)
		}
	}
	if runErr != nil {
		return compiler.ExitFatal, runErr
	}

	data, err := manifest.Marshal(res.Manifest, format)
	if err != nil {
		return compiler.ExitFatal, err
	}
	if err := r.writeManifest(data); err != nil {
		return compiler.ExitFatal, err
	}

	if r.publisher != nil {
		msg := publish.Message{
			Subject: r.cfg.Publish.Subject,
			RunID:   res.RunID,
			Format:  string(format),
			Data:    data,
		}
		if err := r.publisher.Publish(ctx, msg); err != nil {
			return compiler.ExitFatal, fmt.Errorf("publish manifest: %w", err)
		}
	}

	return res.ExitCode(r.cfg.Strict), nil
}

// writeManifest writes data to the configured output file, or stdout.
func (r *runner) writeManifest(data []byte) error {
	if r.cfg.Output == "" {
		_, err := r.stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(r.cfg.Output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(r.cfg.Output, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	r.logger.Info("Manifest written", "path", r.cfg.Output, "bytes", len(data))
	return nil
}
