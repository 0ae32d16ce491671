package capture

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Spec describes one frame-grabbing run.
type Spec struct {
	Source        string
	Dir           string
	StartNumber   int
	Interval      time.Duration
	Quality       int
	RTSPTransport string
}

// Launcher starts the external frame grabber. The default launcher runs
// ffmpeg; tests inject fakes.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (Process, error)
}

// Process is a running frame grabber.
type Process interface {
	Pid() int
	// Terminate asks the process (group) to exit cleanly.
	Terminate() error
	// Kill forcibly ends the process (group).
	Kill() error
	// Wait blocks until the process exits. It is called exactly once.
	Wait() error
	// Diagnostics returns the most recent stderr lines.
	Diagnostics() []string
}

// BuildArgs returns the ffmpeg arguments for spec.
func BuildArgs(spec Spec) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}
	source := strings.TrimSpace(spec.Source)
	switch {
	case isSnapshotURL(source):
		args = append(args, "-f", "image2", "-loop", "1", "-re")
	case strings.HasPrefix(strings.ToLower(source), "rtsp://") && spec.RTSPTransport != "":
		args = append(args, "-rtsp_transport", spec.RTSPTransport)
	}
	args = append(args, "-i", source)

	interval := spec.Interval
	if interval <= 0 {
		interval = time.Second
	}
	args = append(args,
		"-vf", "fps=1/"+strconv.FormatFloat(interval.Seconds(), 'f', -1, 64),
		"-q:v", strconv.Itoa(max(spec.Quality, 1)),
		"-start_number", strconv.Itoa(max(spec.StartNumber, 1)),
		filepath.Join(spec.Dir, FramePattern),
	)
	return args
}

// isSnapshotURL reports whether source points at a still image that must be
// re-fetched rather than a continuous stream.
func isSnapshotURL(source string) bool {
	lower := strings.ToLower(source)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return strings.HasSuffix(lower, "/snapshot") || strings.HasSuffix(lower, "/snap")
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
