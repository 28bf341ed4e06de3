package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alexraputa/agent-skills-sub001/compiler"
	"github.com/alexraputa/agent-skills-sub001/config"
	"github.com/alexraputa/agent-skills-sub001/manifest"
	"github.com/alexraputa/agent-skills-sub001/rules"
	"github.com/alexraputa/agent-skills-sub001/rules/conflict"
	"github.com/alexraputa/agent-skills-sub001/rules/sections"
)

func sectionsCmd(g *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "sections <rules-dir>",
		Short: "Print the section registry of a rules directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, g, args[0], &config.Config{Format: format})
			if err != nil {
				return &exitError{code: compiler.ExitFatal, err: err}
			}
			f, err := manifest.ParseFormat(cfg.Format)
			if err != nil {
				return &exitError{code: compiler.ExitFatal, err: err}
			}

			normalizer, err := rules.NewImpactNormalizer(cfg.ImpactAliases)
			if err != nil {
				return &exitError{code: compiler.ExitFatal, err: err}
			}
			content, err := os.ReadFile(filepath.Join(args[0], cfg.SectionsFile))
			if err != nil {
				return &exitError{code: compiler.ExitFatal, err: fmt.Errorf("load sections file: %w", err)}
			}
			registry, err := sections.Load(content, normalizer)
			if err != nil {
				return &exitError{code: compiler.ExitFatal, err: err}
			}

			// A manifest without rules renders exactly the registry.
			m := manifest.Build(registry.Sections(), &conflict.Resolution{})
			if err := manifest.Write(cmd.OutOrStdout(), m, f); err != nil {
				return &exitError{code: compiler.ExitFatal, err: err}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (json, yaml, table, markdown)")
	return cmd
}
