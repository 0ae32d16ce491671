package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"printlapse/internal/capture"
	"printlapse/internal/config"
	"printlapse/internal/ipc"
	"printlapse/internal/monitor"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "status",
		Short:       "Show daemon, printer, and capture status",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return fmt.Errorf("status: %w", err)
				}
				renderStatus(out, resp, time.Now())
				return nil
			})
			if errors.Is(err, errDaemonUnavailable) {
				cfg, _, _, loadErr := config.LoadUnvalidated(ctx.configPath())
				renderOffline(out, cfg, loadErr)
				return nil
			}
			return err
		},
	}
}

func renderStatus(out io.Writer, resp *ipc.StatusResponse, now time.Time) {
	w := newStatusWriter(out)
	st := resp.Monitor

	w.section("Daemon")
	if resp.Running {
		w.line("Daemon", statusOK, "running (pid %d, up %s)", resp.PID, since(now, resp.StartedAt))
	} else {
		w.line("Daemon", statusWarn, "not running (pid %d)", resp.PID)
	}
	w.line("Phase", phaseKind(st.Phase), "%s", st.Phase)

	switch {
	case st.LastPoll.IsZero():
		w.line("Printer", statusInfo, "no poll yet")
	case st.LastPollError != "":
		w.line("Printer", statusError, "%s (last poll %s ago)", st.LastPollError, since(now, st.LastPoll))
	default:
		kind := statusInfo
		if st.PrinterActive {
			kind = statusOK
		}
		w.line("Printer", kind, "%s (last poll %s ago)", valueOr(st.PrinterState, "unknown"), since(now, st.LastPoll))
	}

	switch {
	case st.Capturing:
		w.line("Capture", statusOK, "%s, %d frames", describeJob(st), st.Frames)
	case st.Phase == monitor.PhaseStalled:
		w.line("Capture", statusError, "%s, capture not running, %d frames", describeJob(st), st.Frames)
	default:
		w.line("Capture", statusInfo, "idle, %d frames on disk", st.Frames)
	}
	if !st.WatchdogDeadline.IsZero() {
		w.line("Watchdog", statusInfo, "fires at %s", st.WatchdogDeadline.Local().Format(time.DateTime))
	}
	if st.LastArtifact != "" {
		w.line("Last video", statusOK, "%s (%s)", st.LastArtifact, st.LastArtifactAt.Local().Format(time.DateTime))
	}
	if st.LastJobError != "" {
		w.line("Last error", statusWarn, "%s", st.LastJobError)
	}
	w.line("Notify", statusInfo, "%s", yesNo(resp.NotificationsConfigured))

	if len(resp.Dependencies) > 0 {
		w.section("Dependencies")
		rows := make([][]string, 0, len(resp.Dependencies))
		for _, dep := range resp.Dependencies {
			state := "ok"
			switch {
			case !dep.Available && dep.Optional:
				state = "missing (optional)"
			case !dep.Available:
				state = "missing"
			}
			rows = append(rows, []string{dep.Name, valueOr(dep.Path, dep.Command), state})
		}
		fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "State"}, rows, nil))
	}
}

func renderOffline(out io.Writer, cfg *config.Config, loadErr error) {
	w := newStatusWriter(out)
	w.section("Daemon")
	w.line("Daemon", statusWarn, "not running")
	if loadErr != nil {
		w.line("Config", statusError, "%v", loadErr)
		return
	}
	frames, err := capture.ScanFrames(cfg.Paths.FramesDir)
	if err != nil {
		w.line("Frames", statusError, "%v", err)
		return
	}
	kind := statusInfo
	if len(frames) > 0 {
		kind = statusWarn
	}
	w.line("Frames", kind, "%d on disk in %s", len(frames), cfg.Paths.FramesDir)
}

func describeJob(st monitor.Status) string {
	job := "job " + valueOr(st.JobID, "?")
	if st.JobLabel != "" {
		job += fmt.Sprintf(" %q", st.JobLabel)
	}
	return job
}

func phaseKind(phase monitor.Phase) statusKind {
	switch phase {
	case monitor.PhaseCapturing:
		return statusOK
	case monitor.PhaseStalled:
		return statusError
	case monitor.PhaseStopped:
		return statusWarn
	default:
		return statusInfo
	}
}

func since(now, then time.Time) string {
	if then.IsZero() {
		return "unknown"
	}
	return now.Sub(then).Truncate(time.Second).String()
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
