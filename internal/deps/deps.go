package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"printlapse/internal/config"
)

const versionTimeout = 5 * time.Second

// Requirement names an external binary printlapse shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of probing one Requirement. Path is the resolved
// executable when Available.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// Requirements lists the binaries the daemon needs for cfg. The shell only
// matters when a notify command is configured.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for frame capture and timelapse assembly",
		},
		{
			Name:        "Shell",
			Command:     "sh",
			Description: "Runs the post-assembly notify command",
			Optional:    strings.TrimSpace(cfg.Notify.Command) == "",
		},
	}
}

// Check probes every requirement for cfg.
func Check(cfg *config.Config) []Status {
	reqs := Requirements(cfg)
	out := make([]Status, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, Probe(req))
	}
	return out
}

// Probe resolves req.Command on PATH.
func Probe(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

// MissingRequired returns the required dependencies that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Optional && !s.Available {
			missing = append(missing, s)
		}
	}
	return missing
}

// Version runs `<binary> -version` and returns the first output line,
// e.g. "ffmpeg version 6.1.1 Copyright (c) ...".
func Version(ctx context.Context, binary string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return "", fmt.Errorf("binary not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", binary, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("%s -version: empty output", binary)
}
