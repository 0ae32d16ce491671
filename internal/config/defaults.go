package config

const (
	defaultFramesDir              = "~/.local/share/printlapse/frames"
	defaultOutputDir              = "~/Videos/printlapse"
	defaultLogDir                 = "~/.local/share/printlapse/logs"
	defaultStatusPath             = "/api/v1/status"
	defaultActiveState            = "PRINTING"
	defaultPrinterRequestTimeout  = 5
	defaultStateField             = "printer.state"
	defaultJobIDField             = "job.id"
	defaultJobLabelField          = "job.display_name"
	defaultCaptureIntervalSeconds = 10
	defaultCaptureQuality         = 2
	defaultRTSPTransport          = "tcp"
	defaultFFmpegBinary           = "ffmpeg"
	defaultStopGraceSeconds       = 5
	defaultFramerate              = 30
	defaultCRF                    = 23
	defaultCodec                  = "libx264"
	defaultExtension              = "mp4"
	defaultPollIntervalSeconds    = 10
	defaultWatchdogTimeoutSeconds = 6 * 60 * 60
	defaultNotifyCommandTimeout   = 30
	defaultNtfyRequestTimeout     = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			FramesDir: defaultFramesDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Printer: Printer{
			StatusPath:     defaultStatusPath,
			ActiveState:    defaultActiveState,
			RequestTimeout: defaultPrinterRequestTimeout,
			StateField:     defaultStateField,
			JobIDField:     defaultJobIDField,
			JobLabelField:  defaultJobLabelField,
		},
		Capture: Capture{
			IntervalSeconds:  defaultCaptureIntervalSeconds,
			Quality:          defaultCaptureQuality,
			RTSPTransport:    defaultRTSPTransport,
			FFmpegBinary:     defaultFFmpegBinary,
			StopGraceSeconds: defaultStopGraceSeconds,
		},
		Assembly: Assembly{
			Framerate: defaultFramerate,
			CRF:       defaultCRF,
			Codec:     defaultCodec,
			Extension: defaultExtension,
		},
		Monitor: Monitor{
			PollIntervalSeconds:    defaultPollIntervalSeconds,
			WatchdogTimeoutSeconds: defaultWatchdogTimeoutSeconds,
		},
		Notify: Notify{
			CommandTimeoutSeconds: defaultNotifyCommandTimeout,
			NtfyRequestTimeout:    defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
