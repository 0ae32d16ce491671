package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"printlapse/internal/config"
	"printlapse/internal/deps"
	"printlapse/internal/printer"
)

const (
	checkTimeout    = 5 * time.Second
	defaultRTSPPort = "554"
)

// CheckPrinter fetches one status report and summarizes it.
func CheckPrinter(ctx context.Context, cfg *config.Config) Result {
	return checkStatusSource(ctx, printer.NewClient(cfg), cfg.Printer.ActiveState)
}

func checkStatusSource(ctx context.Context, source printer.Source, activeState string) Result {
	const name = "Printer status"

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	snap, err := source.FetchStatus(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	detail := fmt.Sprintf("state %s", valueOr(snap.State, "(empty)"))
	if strings.EqualFold(snap.State, activeState) {
		detail += " (printing)"
	}
	if snap.HasJob() {
		detail += fmt.Sprintf(", job %s", snap.JobID)
		if snap.JobLabel != "" {
			detail += fmt.Sprintf(" %q", snap.JobLabel)
		}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckCaptureSource verifies the camera answers. HTTP snapshot sources must
// return an image; RTSP sources only need to accept a TCP connection.
func CheckCaptureSource(ctx context.Context, source string) Result {
	const name = "Camera"

	source = strings.TrimSpace(source)
	if source == "" {
		return Result{Name: name, Detail: "capture source not configured"}
	}
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		if _, statErr := os.Stat(source); statErr == nil {
			return Result{Name: name, Passed: true, Detail: "local device present"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("unrecognized source %q", source)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return checkSnapshot(checkCtx, name, u.String())
	case "rtsp", "rtsps":
		host := u.Host
		if u.Port() == "" {
			host = net.JoinHostPort(u.Hostname(), defaultRTSPPort)
		}
		var d net.Dialer
		conn, err := d.DialContext(checkCtx, "tcp", host)
		if err != nil {
			return Result{Name: name, Detail: summarizeError(err)}
		}
		_ = conn.Close()
		return Result{Name: name, Passed: true, Detail: "RTSP port reachable " + host}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
}

func checkSnapshot(ctx context.Context, name, target string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Name: name, Detail: fmt.Sprintf("snapshot request failed (%d)", resp.StatusCode)}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "multipart/") {
		return Result{Name: name, Detail: fmt.Sprintf("unexpected content type %q", contentType)}
	}
	return Result{Name: name, Passed: true, Detail: "snapshot reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for cfg. Both the daemon
// and the CLI use this so the requirement list lives in one place.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.Check(cfg)
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
