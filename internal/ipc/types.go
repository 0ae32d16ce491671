package ipc

import (
	"time"

	"printlapse/internal/monitor"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail"`
}

// StatusResponse represents combined daemon and monitor status information.
type StatusResponse struct {
	Running                 bool               `json:"running"`
	PID                     int                `json:"pid"`
	StartedAt               time.Time          `json:"started_at"`
	LockPath                string             `json:"lock_path"`
	LogPath                 string             `json:"log_path"`
	FramesDir               string             `json:"frames_dir"`
	OutputDir               string             `json:"output_dir"`
	NotificationsConfigured bool               `json:"notifications_configured"`
	Monitor                 monitor.Status     `json:"monitor"`
	Dependencies            []DependencyStatus `json:"dependencies"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether the notification was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
