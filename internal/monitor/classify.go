package monitor

import (
	"strings"

	"printlapse/internal/printer"
)

// Event is the lifecycle transition derived from one observation.
type Event int

const (
	EventNone Event = iota
	// EventStarted begins a capture for a new job.
	EventStarted
	// EventResumed continues numbering after frames already on disk.
	EventResumed
	// EventHeartbeat confirms a running capture's job is still active.
	EventHeartbeat
	// EventStopped runs the stop/assemble/notify sequence.
	EventStopped
	// EventDiscardStale clears leftover frames seen on an idle first poll.
	EventDiscardStale
	// EventSwitched closes a job whose capture died and starts the new job
	// the printer now reports.
	EventSwitched
)

func (e Event) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventResumed:
		return "resumed"
	case EventHeartbeat:
		return "heartbeat"
	case EventStopped:
		return "stopped"
	case EventDiscardStale:
		return "discard_stale"
	case EventSwitched:
		return "switched"
	default:
		return "none"
	}
}

// Observation is a status snapshot reduced to what the state machine needs.
type Observation struct {
	State    string
	Active   bool
	JobID    string
	JobLabel string
}

// Observe classifies snap as active when its state matches activeState,
// case-insensitively. Every other state, error states included, is inactive.
func Observe(snap printer.Snapshot, activeState string) Observation {
	return Observation{
		State:    snap.State,
		Active:   strings.EqualFold(strings.TrimSpace(snap.State), strings.TrimSpace(activeState)),
		JobID:    snap.JobID,
		JobLabel: snap.JobLabel,
	}
}

// ActiveJob reports an active state that names a job.
func (o Observation) ActiveJob() bool {
	return o.Active && o.JobID != ""
}

// Flags carries the session facts Classify depends on.
type Flags struct {
	// FirstPoll is true until the first successful observation is handled.
	FirstPoll bool
	// JobOpen is true from a processed start until the stop sequence runs.
	JobOpen bool
	// Capturing mirrors the capture manager, read fresh every tick.
	Capturing bool
	// CanResume is true when frames from an earlier run are on disk.
	CanResume bool
	// JobID is the open job's identifier.
	JobID string
	// ClosedJobID is the job whose stop sequence ran most recently.
	ClosedJobID string
	// ClosedJobLabel is that job's label. Firmware that restarts its job
	// counter reuses ids, so a returning job must match both.
	ClosedJobLabel string
}

// Classify maps the previous and current observations plus session flags to
// a single event. It has no side effects.
func Classify(prev, cur Observation, flags Flags) Event {
	if flags.FirstPoll {
		switch {
		case cur.ActiveJob() && flags.CanResume:
			return EventResumed
		case cur.ActiveJob():
			return EventStarted
		case !cur.Active && flags.CanResume:
			return EventDiscardStale
		default:
			return EventNone
		}
	}

	if flags.JobOpen || flags.Capturing {
		switch {
		case !cur.Active:
			return EventStopped
		case flags.Capturing:
			return EventHeartbeat
		case cur.JobID != "" && flags.JobID != "" && cur.JobID != flags.JobID:
			return EventSwitched
		default:
			// Job still active but its capture is gone: pick the frames up again.
			return EventResumed
		}
	}

	// An active poll without a job id does not count as the job's start, so
	// the first poll that names the job still begins its capture.
	if cur.ActiveJob() && !prev.ActiveJob() {
		if flags.CanResume && cur.JobID == flags.ClosedJobID && cur.JobLabel == flags.ClosedJobLabel {
			return EventResumed
		}
		return EventStarted
	}
	return EventNone
}
