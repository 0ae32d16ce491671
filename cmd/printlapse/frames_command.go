package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"printlapse/internal/capture"
	"printlapse/internal/config"
	"printlapse/internal/daemon"
	"printlapse/internal/logging"
)

func newFramesCommand(ctx *commandContext) *cobra.Command {
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Summarize or clear the captured frames on disk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if clearAll {
				return clearFrames(out, cfg)
			}
			return summarizeFrames(out, cfg)
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all frames (refused while the daemon is running)")
	return cmd
}

type frameSummary struct {
	count    int
	first    int
	last     int
	gaps     int
	bytes    int64
	oldest   time.Time
	newest   time.Time
	resumeAt int
}

func scanSummary(dir string) (frameSummary, error) {
	frames, err := capture.ScanFrames(dir)
	if err != nil {
		return frameSummary{}, err
	}
	sum := frameSummary{count: len(frames)}
	if len(frames) == 0 {
		return sum, nil
	}
	sum.first = frames[0].Number
	sum.last = frames[len(frames)-1].Number
	sum.gaps = (sum.last - sum.first + 1) - len(frames)
	sum.resumeAt = sum.last + 1
	for _, frame := range frames {
		info, err := os.Stat(frame.Path)
		if err != nil {
			continue
		}
		sum.bytes += info.Size()
		mod := info.ModTime()
		if sum.oldest.IsZero() || mod.Before(sum.oldest) {
			sum.oldest = mod
		}
		if mod.After(sum.newest) {
			sum.newest = mod
		}
	}
	return sum, nil
}

func summarizeFrames(out io.Writer, cfg *config.Config) error {
	sum, err := scanSummary(cfg.Paths.FramesDir)
	if err != nil {
		return err
	}
	if sum.count == 0 {
		fmt.Fprintf(out, "No frames in %s\n", cfg.Paths.FramesDir)
		return nil
	}
	rows := [][]string{
		{"Directory", cfg.Paths.FramesDir},
		{"Frames", strconv.Itoa(sum.count)},
		{"Range", fmt.Sprintf("%s .. %s", capture.FrameName(sum.first), capture.FrameName(sum.last))},
		{"Gaps", strconv.Itoa(sum.gaps)},
		{"Size", humanBytes(sum.bytes)},
		{"Oldest", sum.oldest.Local().Format(time.DateTime)},
		{"Newest", sum.newest.Local().Format(time.DateTime)},
		{"Resume at", capture.FrameName(sum.resumeAt)},
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
	return nil
}

// errDaemonRunning guards maintenance commands that would race the capture
// process.
var errDaemonRunning = errors.New("daemon is running; stop it before touching the frames directory")

func ensureDaemonStopped(cfg *config.Config) error {
	held, err := daemon.Locked(cfg.LockPath())
	if err != nil {
		return err
	}
	if held {
		return errDaemonRunning
	}
	return nil
}

func clearFrames(out io.Writer, cfg *config.Config) error {
	if err := ensureDaemonStopped(cfg); err != nil {
		return err
	}
	manager := capture.NewManager(cfg, logging.NewNop())
	count := manager.FrameCount()
	if err := manager.Clear(); err != nil {
		return fmt.Errorf("clear frames: %w", err)
	}
	fmt.Fprintf(out, "Removed %d frames from %s\n", count, cfg.Paths.FramesDir)
	return nil
}
