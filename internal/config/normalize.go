package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePrinter()
	c.normalizeCapture()
	c.normalizeAssembly()
	c.normalizeNotify()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.FramesDir) == "" {
		c.Paths.FramesDir = defaultFramesDir
	}
	if c.Paths.FramesDir, err = expandPath(c.Paths.FramesDir); err != nil {
		return fmt.Errorf("paths.frames_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePrinter() {
	c.Printer.URL = strings.TrimSpace(c.Printer.URL)
	if c.Printer.URL == "" {
		if value, ok := os.LookupEnv("PRINTLAPSE_PRINTER_URL"); ok {
			c.Printer.URL = strings.TrimSpace(value)
		}
	}
	if c.Printer.APIKey == "" {
		if value, ok := os.LookupEnv("PRINTLAPSE_PRINTER_API_KEY"); ok {
			c.Printer.APIKey = strings.TrimSpace(value)
		}
	}
	c.Printer.StatusPath = strings.TrimSpace(c.Printer.StatusPath)
	c.Printer.ActiveState = strings.TrimSpace(c.Printer.ActiveState)
	if c.Printer.ActiveState == "" {
		c.Printer.ActiveState = defaultActiveState
	}
	c.Printer.StateField = defaultString(c.Printer.StateField, defaultStateField)
	c.Printer.JobIDField = defaultString(c.Printer.JobIDField, defaultJobIDField)
	c.Printer.JobLabelField = defaultString(c.Printer.JobLabelField, defaultJobLabelField)
	ensurePositiveMap(map[*int]int{
		&c.Printer.RequestTimeout: defaultPrinterRequestTimeout,
	})
}

func (c *Config) normalizeCapture() {
	c.Capture.Source = strings.TrimSpace(c.Capture.Source)
	if c.Capture.Source == "" {
		if value, ok := os.LookupEnv("PRINTLAPSE_CAPTURE_SOURCE"); ok {
			c.Capture.Source = strings.TrimSpace(value)
		}
	}
	c.Capture.RTSPTransport = strings.ToLower(strings.TrimSpace(c.Capture.RTSPTransport))
	c.Capture.FFmpegBinary = defaultString(c.Capture.FFmpegBinary, defaultFFmpegBinary)
	ensurePositiveMap(map[*int]int{
		&c.Capture.IntervalSeconds:  defaultCaptureIntervalSeconds,
		&c.Capture.Quality:          defaultCaptureQuality,
		&c.Capture.StopGraceSeconds: defaultStopGraceSeconds,
	})
}

func (c *Config) normalizeAssembly() {
	c.Assembly.Codec = defaultString(c.Assembly.Codec, defaultCodec)
	c.Assembly.Extension = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Assembly.Extension), "."))
	if c.Assembly.Extension == "" {
		c.Assembly.Extension = defaultExtension
	}
	ensurePositiveMap(map[*int]int{
		&c.Assembly.Framerate: defaultFramerate,
	})
	if c.Assembly.CRF == 0 {
		c.Assembly.CRF = defaultCRF
	}
}

func (c *Config) normalizeNotify() {
	c.Notify.Command = strings.TrimSpace(c.Notify.Command)
	c.Notify.NtfyTopic = strings.TrimSpace(c.Notify.NtfyTopic)
	if c.Notify.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notify.NtfyTopic = strings.TrimSpace(value)
		}
	}
	ensurePositiveMap(map[*int]int{
		&c.Notify.CommandTimeoutSeconds: defaultNotifyCommandTimeout,
		&c.Notify.NtfyRequestTimeout:    defaultNtfyRequestTimeout,
	})
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func defaultString(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

// ensurePositiveMap replaces zero or negative values with their defaults.
func ensurePositiveMap(values map[*int]int) {
	for ptr, def := range values {
		if *ptr <= 0 {
			*ptr = def
		}
	}
}
