package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"printlapse/internal/assembly"
	"printlapse/internal/capture"
	"printlapse/internal/config"
	"printlapse/internal/logging"
	"printlapse/internal/monitor"
)

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	var label string
	var clearAfter bool
	var verbose bool
	cmd := &cobra.Command{
		Use:   "assemble [output]",
		Short: "Assemble the frames on disk into a video",
		Long: "Encode whatever frames are in the frames directory, for example after an\n" +
			"automatic assembly failed. Without an output path the video is written to\n" +
			"the output directory using the daemon's naming scheme.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := ensureDaemonStopped(cfg); err != nil {
				return err
			}

			output, err := resolveOutput(cfg, args, label, time.Now())
			if err != nil {
				return err
			}

			logger := logging.NewNop()
			if verbose {
				logger, err = logging.New(logging.Options{Level: "info", Format: cfg.Logging.Format})
				if err != nil {
					return err
				}
			}
			manager := capture.NewManager(cfg, logger)
			result, err := assembly.New(cfg, manager, logger).Assemble(cmd.Context(), output)
			if errors.Is(err, assembly.ErrNoFrames) {
				return fmt.Errorf("no frames in %s", cfg.Paths.FramesDir)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (%d frames, %s)\n", result.Path, result.Frames, result.Duration.Round(time.Second/10))
			if clearAfter {
				if err := manager.Clear(); err != nil {
					return fmt.Errorf("clear frames: %w", err)
				}
				fmt.Fprintln(out, "Frames cleared")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Job label used to name the video")
	cmd.Flags().BoolVar(&clearAfter, "clear-frames", false, "Delete the frames after a successful assembly")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log encoder progress")
	return cmd
}

func resolveOutput(cfg *config.Config, args []string, label string, now time.Time) (string, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		output, err := config.ExpandPath(strings.TrimSpace(args[0]))
		if err != nil {
			return "", fmt.Errorf("resolve output path: %w", err)
		}
		return filepath.Abs(output)
	}
	return filepath.Join(cfg.Paths.OutputDir, monitor.ArtifactName(label, "", now, cfg.Assembly.Extension)), nil
}
