package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"printlapse/internal/config"
	"printlapse/internal/deps"
	"printlapse/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "check",
		Short:       "Verify configuration, dependencies, printer, and camera",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			w := newStatusWriter(out)

			w.section("Configuration")
			cfg, path, exists, err := config.LoadUnvalidated(ctx.configPath())
			if err != nil {
				w.line("Config", statusError, "%v", err)
				return fmt.Errorf("configuration could not be loaded")
			}
			source := path
			if !exists {
				source = "defaults (no file at " + path + ")"
			}
			failures := 0
			if err := cfg.Validate(); err != nil {
				w.line("Config", statusError, "%s: %v", source, err)
				failures++
			} else {
				w.line("Config", statusOK, "%s", source)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				w.line("Directories", statusError, "%v", err)
				failures++
			}

			w.section("Dependencies")
			for _, dep := range deps.Check(cfg) {
				switch {
				case dep.Available:
					w.line(dep.Name, statusOK, "%s", dep.Command)
				case dep.Optional:
					w.line(dep.Name, statusInfo, "%s (optional)", dep.Detail)
				default:
					w.line(dep.Name, statusError, "%s", dep.Detail)
					failures++
				}
			}
			if version, err := deps.Version(cmd.Context(), cfg.FFmpegBinary()); err == nil {
				w.line("Version", statusInfo, "%s", version)
			}

			w.section("Services")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				if result.Passed {
					w.line(result.Name, statusOK, "%s", result.Detail)
					continue
				}
				w.line(result.Name, statusError, "%s", result.Detail)
				failures++
			}

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
