// Package logging assembles structured slog loggers and formatting helpers used
// across printlapse.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so monitor code can tag log lines
// with the printer job and capture run identifiers. WarnWithContext and
// ErrorWithContext enforce the event_type / error_hint / impact triple on
// every warning so operators always see cause, consequence, and next step.
package logging
