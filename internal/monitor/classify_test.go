package monitor

import (
	"testing"

	"printlapse/internal/printer"
)

func TestObserveMatchesActiveStateCaseInsensitively(t *testing.T) {
	obs := Observe(printer.Snapshot{State: "printing", JobID: "7", JobLabel: "benchy"}, "PRINTING")
	if !obs.Active || !obs.ActiveJob() {
		t.Fatalf("expected active job, got %+v", obs)
	}
	for _, state := range []string{"IDLE", "PAUSED", "ERROR", ""} {
		if Observe(printer.Snapshot{State: state, JobID: "7"}, "PRINTING").Active {
			t.Fatalf("state %q should be inactive", state)
		}
	}
	if Observe(printer.Snapshot{State: "PRINTING"}, "PRINTING").ActiveJob() {
		t.Fatal("active state without a job id is not an active job")
	}
}

func TestClassify(t *testing.T) {
	idle := Observation{State: "IDLE"}
	active := func(id string) Observation { return Observation{State: "PRINTING", Active: true, JobID: id} }
	activeNoJob := Observation{State: "PRINTING", Active: true}
	labelled := func(id, label string) Observation {
		return Observation{State: "PRINTING", Active: true, JobID: id, JobLabel: label}
	}

	tests := []struct {
		name  string
		prev  Observation
		cur   Observation
		flags Flags
		want  Event
	}{
		{"first poll active fresh", Observation{}, active("1"), Flags{FirstPoll: true}, EventStarted},
		{"first poll active with frames resumes", Observation{}, active("1"), Flags{FirstPoll: true, CanResume: true}, EventResumed},
		{"first poll idle with frames discards", Observation{}, idle, Flags{FirstPoll: true, CanResume: true}, EventDiscardStale},
		{"first poll idle clean", Observation{}, idle, Flags{FirstPoll: true}, EventNone},
		{"first poll active without job id", Observation{}, activeNoJob, Flags{FirstPoll: true, CanResume: true}, EventNone},
		{"idle to active starts", idle, active("2"), Flags{}, EventStarted},
		{"idle to active ignores unrelated frames", idle, active("2"), Flags{CanResume: true, ClosedJobID: "1"}, EventStarted},
		{"same job returns after close resumes", idle, active("1"), Flags{CanResume: true, ClosedJobID: "1"}, EventResumed},
		{"same job returns after successful close starts", idle, active("1"), Flags{ClosedJobID: "1"}, EventStarted},
		{"reused job id with another file starts", idle, labelled("1", "vase"), Flags{CanResume: true, ClosedJobID: "1", ClosedJobLabel: "benchy"}, EventStarted},
		{"same job and file returns resumes", idle, labelled("1", "benchy"), Flags{CanResume: true, ClosedJobID: "1", ClosedJobLabel: "benchy"}, EventResumed},
		{"job id appearing after an id-less active poll starts", activeNoJob, active("9"), Flags{}, EventStarted},
		{"active to active without capture is quiet", active("1"), active("1"), Flags{}, EventNone},
		{"idle to active without job id", idle, activeNoJob, Flags{}, EventNone},
		{"idle stays idle", idle, idle, Flags{}, EventNone},
		{"capturing heartbeat", active("1"), active("1"), Flags{JobOpen: true, Capturing: true, JobID: "1"}, EventHeartbeat},
		{"capturing different job still heartbeat", active("1"), active("2"), Flags{JobOpen: true, Capturing: true, JobID: "1"}, EventHeartbeat},
		{"capturing then idle stops", active("1"), idle, Flags{JobOpen: true, Capturing: true, JobID: "1"}, EventStopped},
		{"capturing then paused stops", active("1"), Observation{State: "PAUSED", JobID: "1"}, Flags{JobOpen: true, Capturing: true, JobID: "1"}, EventStopped},
		{"open job crashed capture resumes", active("1"), active("1"), Flags{JobOpen: true, JobID: "1", CanResume: true}, EventResumed},
		{"open job crashed then idle stops", active("1"), idle, Flags{JobOpen: true, JobID: "1"}, EventStopped},
		{"open job crashed new job switches", active("1"), active("2"), Flags{JobOpen: true, JobID: "1"}, EventSwitched},
		{"orphan capture stops when idle", idle, idle, Flags{Capturing: true}, EventStopped},
		{"orphan capture heartbeat", active("1"), active("1"), Flags{Capturing: true}, EventHeartbeat},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.prev, tc.cur, tc.flags); got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyStartsOnlyOnTransition(t *testing.T) {
	// A sustained active observation never yields a second start.
	prev := Observation{State: "PRINTING", Active: true, JobID: "9"}
	for range 5 {
		if got := Classify(prev, prev, Flags{}); got != EventNone {
			t.Fatalf("sustained active produced %s", got)
		}
	}
}
