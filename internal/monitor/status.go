package monitor

import "time"

// Phase summarizes what the monitor is doing.
type Phase string

const (
	PhaseStarting  Phase = "starting"
	PhaseIdle      Phase = "idle"
	PhaseCapturing Phase = "capturing"
	// PhaseStalled means a job is open but its capture process is not running.
	PhaseStalled Phase = "stalled"
	PhaseStopped Phase = "stopped"
)

// Status is a point-in-time copy of the monitor session, safe to hand to
// other goroutines.
type Status struct {
	Phase            Phase     `json:"phase"`
	PrinterState     string    `json:"printer_state,omitempty"`
	PrinterActive    bool      `json:"printer_active"`
	JobID            string    `json:"job_id,omitempty"`
	JobLabel         string    `json:"job_label,omitempty"`
	RunID            string    `json:"run_id,omitempty"`
	JobStartedAt     time.Time `json:"job_started_at,omitzero"`
	Capturing        bool      `json:"capturing"`
	Frames           int       `json:"frames"`
	WatchdogDeadline time.Time `json:"watchdog_deadline,omitzero"`
	LastPoll         time.Time `json:"last_poll,omitzero"`
	LastPollError    string    `json:"last_poll_error,omitempty"`
	LastEvent        string    `json:"last_event,omitempty"`
	LastArtifact     string    `json:"last_artifact,omitempty"`
	LastArtifactAt   time.Time `json:"last_artifact_at,omitzero"`
	LastJobError     string    `json:"last_job_error,omitempty"`
	Polls            uint64    `json:"polls"`
}

// session is owned by the polling goroutine. Nothing else reads or writes it.
type session struct {
	firstPoll      bool
	last           Observation
	jobOpen        bool
	jobID          string
	jobLabel       string
	runID          string
	startedAt      time.Time
	closedJobID    string
	closedJobLabel string
	// anomalyJobID suppresses repeat warnings for the same mismatched job.
	anomalyJobID string
	stallLogged  bool

	lastPoll       time.Time
	lastPollError  string
	lastEvent      Event
	lastArtifact   string
	lastArtifactAt time.Time
	lastJobError   string
	polls          uint64
	stopped        bool
}

func (s *session) closeJob() {
	s.closedJobID = s.jobID
	s.closedJobLabel = s.jobLabel
	s.jobOpen = false
	s.jobID = ""
	s.jobLabel = ""
	s.runID = ""
	s.startedAt = time.Time{}
	s.anomalyJobID = ""
	s.stallLogged = false
}
