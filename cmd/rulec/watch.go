package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexraputa/agent-skills-sub001/compiler"
	"github.com/alexraputa/agent-skills-sub001/publish"
)

func watchCmd(g *globalFlags) *cobra.Command {
	f := &compileFlags{}
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch <rules-dir>",
		Short: "Recompile the manifest whenever rule documents change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rulesDir := args[0]
			overrides, err := f.overrides(cmd)
			if err != nil {
				return &exitError{code: compiler.ExitFatal, err: err}
			}
			overrides.Metrics.Addr = metricsAddr
			cfg, logger, err := loadConfig(cmd, g, rulesDir, overrides)
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

			if cfg.Metrics.Addr != "" {
				srv := &http.Server{
					Addr:              cfg.Metrics.Addr,
					Handler:           metricsMux(metrics),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("Metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				logger.Info("Serving metrics", "addr", cfg.Metrics.Addr)
			}

			w, err := compiler.NewWatcher(cfg.Watch, rulesDir, logger)
			if err != nil {
				return &exitError{code: compiler.ExitFatal, err: err}
			}
			if err := w.Start(ctx); err != nil {
				return &exitError{code: compiler.ExitFatal, err: err}
			}
			defer func() { _ = w.Stop() }()

			r.recompile(ctx, rulesDir, "initial")
			for {
				select {
				case <-ctx.Done():
					logger.Info("Watch stopped")
					return nil
				case ev, ok := <-w.Events():
					if !ok {
						return nil
					}
					logger.Debug("Rule document changed", "path", ev.Path, "operation", ev.Operation)
					r.recompile(ctx, rulesDir, ev.Path)
				}
			}
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9108)")
	return cmd
}

// recompile runs one compilation in watch mode. Failures are logged and the
// watch keeps going.
func (r *runner) recompile(ctx context.Context, rulesDir, trigger string) {
	code, err := r.compile(ctx, rulesDir)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("Recompilation failed", "trigger", trigger, "error", err)
		}
		return
	}
	r.logger.Info("Recompiled rules", "trigger", trigger, "exit_code", code)
}

func metricsMux(m *compiler.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
