package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker so callers can classify the failure with
// errors.Is. The marker should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a failure is expected to clear on a later poll.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return false
	default:
		return true
	}
}

// Hint returns a short operator-facing suggestion for the marker carried by err.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "fix the configuration file and restart the daemon"
	case errors.Is(err, ErrValidation):
		return "check the reported values"
	case errors.Is(err, ErrExternalTool):
		return "check that the external tool is installed and its output above"
	case errors.Is(err, ErrTimeout):
		return "check network reachability and timeouts"
	case errors.Is(err, ErrNotFound):
		return "check that the referenced path exists"
	default:
		return "retry; the condition is usually transient"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
