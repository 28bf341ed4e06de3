// Package main provides the rulec binary entry point.
// Rulec compiles a corpus of rule documents into a deterministic manifest.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexraputa/agent-skills-sub001/compiler"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "rulec"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(compiler.ExitFatal)
		}
	}()

	os.Exit(execute(rootCmd()))
}

// execute runs cmd and maps its outcome to an exit code.
func execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return compiler.ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return compiler.ExitFatal
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Rule corpus compiler",
		Long: `Rulec ingests a directory of rule documents, maps each document to a
declared section by file-name prefix, validates impact tiers, detects
conflicting duplicates and emits a deterministic manifest.

Exit codes:
  0  no per-document errors and no conflicts
  1  completed with per-document errors or conflicts
  2  fatal error, or any error or conflict under --strict`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML); default searches rulec.yaml upward from the rules directory")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(compileCmd(g))
	cmd.AddCommand(watchCmd(g))
	cmd.AddCommand(sectionsCmd(g))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// newLogger builds the stderr text logger for the given level name.
func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
