package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	FramesDir string `toml:"frames_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Printer describes how the remote printer reports its activity.
type Printer struct {
	URL            string `toml:"url"`
	StatusPath     string `toml:"status_path"`
	APIKey         string `toml:"api_key"`
	ActiveState    string `toml:"active_state"`
	RequestTimeout int    `toml:"request_timeout"`
	StateField     string `toml:"state_field"`
	JobIDField     string `toml:"job_id_field"`
	JobLabelField  string `toml:"job_label_field"`
}

// Capture contains configuration for the frame grabber subprocess.
type Capture struct {
	Source           string `toml:"source"`
	IntervalSeconds  int    `toml:"interval_seconds"`
	Quality          int    `toml:"quality"`
	RTSPTransport    string `toml:"rtsp_transport"`
	FFmpegBinary     string `toml:"ffmpeg_binary"`
	StopGraceSeconds int    `toml:"stop_grace_seconds"`
}

// Assembly contains encoder settings for the finished video.
type Assembly struct {
	Framerate int    `toml:"framerate"`
	CRF       int    `toml:"crf"`
	Codec     string `toml:"codec"`
	Extension string `toml:"extension"`
}

// Monitor contains polling and watchdog timing.
type Monitor struct {
	PollIntervalSeconds    int `toml:"poll_interval_seconds"`
	WatchdogTimeoutSeconds int `toml:"watchdog_timeout_seconds"`
}

// Notify contains configuration for completion notifications.
type Notify struct {
	Command               string `toml:"command"`
	CommandTimeoutSeconds int    `toml:"command_timeout_seconds"`
	NtfyTopic             string `toml:"ntfy_topic"`
	NtfyRequestTimeout    int    `toml:"ntfy_request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for printlapse.
//
// Configuration sections by subsystem:
//   - Paths: frames, finished videos, logs (socket and lock live in log_dir)
//   - Printer: status endpoint and how to read state/job out of its JSON
//   - Capture: camera source and ffmpeg frame grabbing
//   - Assembly: encoder settings for the timelapse video
//   - Monitor: poll interval and watchdog timeout
//   - Notify: shell command and/or ntfy topic fired per finished video
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	Printer  Printer  `toml:"printer"`
	Capture  Capture  `toml:"capture"`
	Assembly Assembly `toml:"assembly"`
	Monitor  Monitor  `toml:"monitor"`
	Notify   Notify   `toml:"notify"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/printlapse/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg, resolvedPath, exists, err := LoadUnvalidated(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return cfg, resolvedPath, exists, nil
}

// LoadUnvalidated parses and normalizes a configuration file without running
// Validate, so diagnostics commands can report on incomplete setups.
func LoadUnvalidated(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("printlapse.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.FramesDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "printlapse.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "printlapse.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "printlapse.pid")
}

// StatusURL joins the printer base URL and status path.
func (c *Config) StatusURL() string {
	base := strings.TrimRight(c.Printer.URL, "/")
	path := c.Printer.StatusPath
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollIntervalSeconds) * time.Second
}

// WatchdogTimeout is zero when the watchdog is disabled.
func (c *Config) WatchdogTimeout() time.Duration {
	if c.Monitor.WatchdogTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Monitor.WatchdogTimeoutSeconds) * time.Second
}

func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.Capture.IntervalSeconds) * time.Second
}

func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Capture.StopGraceSeconds) * time.Second
}

func (c *Config) PrinterRequestTimeout() time.Duration {
	return time.Duration(c.Printer.RequestTimeout) * time.Second
}

func (c *Config) NotifyCommandTimeout() time.Duration {
	return time.Duration(c.Notify.CommandTimeoutSeconds) * time.Second
}

// FFmpegBinary returns the ffmpeg executable used for capture and assembly.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Capture.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
// The file is replaced atomically so an interrupted write never leaves a
// truncated config behind.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := renameio.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
