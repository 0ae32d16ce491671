package config

import (
	"fmt"
	"net/url"
	"strings"

	"printlapse/internal/services"
)

// Validate ensures the configuration is usable. Every failure wraps
// services.ErrConfiguration.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validatePrinter,
		c.validateCapture,
		c.validateAssembly,
		c.validateMonitor,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
		}
	}
	return nil
}

func (c *Config) validatePrinter() error {
	if c.Printer.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/printlapse/config.toml"
		}
		return fmt.Errorf("printer.url is required. Set PRINTLAPSE_PRINTER_URL or edit %s (create with 'printlapse config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Printer.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("printer.url must be an http(s) URL, got %q", c.Printer.URL)
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.Source == "" {
		return fmt.Errorf("capture.source is required (camera stream or snapshot URL)")
	}
	switch c.Capture.RTSPTransport {
	case "", "tcp", "udp":
	default:
		return fmt.Errorf("capture.rtsp_transport must be tcp or udp, got %q", c.Capture.RTSPTransport)
	}
	if c.Capture.Quality < 1 || c.Capture.Quality > 31 {
		return fmt.Errorf("capture.quality must be between 1 and 31, got %d", c.Capture.Quality)
	}
	return nil
}

func (c *Config) validateAssembly() error {
	if c.Assembly.CRF < 0 || c.Assembly.CRF > 51 {
		return fmt.Errorf("assembly.crf must be between 0 and 51, got %d", c.Assembly.CRF)
	}
	if strings.ContainsAny(c.Assembly.Extension, `/\ `) {
		return fmt.Errorf("assembly.extension %q is not a plain file extension", c.Assembly.Extension)
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.PollIntervalSeconds <= 0 {
		return fmt.Errorf("monitor.poll_interval_seconds must be positive")
	}
	if timeout := c.Monitor.WatchdogTimeoutSeconds; timeout > 0 && timeout < c.Monitor.PollIntervalSeconds {
		return fmt.Errorf("monitor.watchdog_timeout_seconds (%d) must be 0 (disabled) or at least the poll interval (%d)",
			timeout, c.Monitor.PollIntervalSeconds)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
