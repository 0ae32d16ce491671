package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"printlapse/internal/assembly"
	"printlapse/internal/capture"
	"printlapse/internal/config"
	"printlapse/internal/logging"
	"printlapse/internal/notifications"
	"printlapse/internal/printer"
	"printlapse/internal/services"
	"printlapse/internal/watchdog"
)

// assemblyTimeout bounds a single encode. Assembly runs detached from the
// loop context so a shutdown signal does not abort a half-written video.
const assemblyTimeout = 2 * time.Hour

// Capture is the subset of the capture manager the monitor drives.
type Capture interface {
	Start(ctx context.Context, resumeIfPossible bool) error
	Stop() error
	IsCapturing() bool
	CanResume() bool
	FrameCount() int
	Clear() error
}

// Assembler turns the frames on disk into a video at outputPath.
type Assembler interface {
	Assemble(ctx context.Context, outputPath string) (assembly.Result, error)
}

// Notifier announces finished timelapses.
type Notifier interface {
	JobCompleted(ctx context.Context, artifact notifications.Artifact) error
}

type noopNotifier struct{}

func (noopNotifier) JobCompleted(context.Context, notifications.Artifact) error { return nil }

// Dependencies are the collaborators a Monitor drives. Clock and NewRunID
// default to time.Now and random UUIDs.
type Dependencies struct {
	Source    printer.Source
	Capture   Capture
	Assembler Assembler
	Notifier  Notifier
	Clock     func() time.Time
	NewRunID  func() string
}

// Monitor polls the printer and drives capture, assembly, and notification
// from the observed job lifecycle. Exactly one goroutine runs the loop.
type Monitor struct {
	source    printer.Source
	capture   Capture
	assembler Assembler
	notifier  Notifier
	watchdog  *watchdog.Timer
	now       func() time.Time
	newRunID  func() string
	logger    *slog.Logger

	activeState  string
	interval     time.Duration
	fetchTimeout time.Duration
	outputDir    string
	framesDir    string
	extension    string

	running  atomic.Bool
	shutdown sync.Once
	status   atomic.Pointer[Status]
	sess     session
}

// New constructs a Monitor. Source, Capture, and Assembler are required.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Monitor, error) {
	if cfg == nil {
		return nil, errors.New("monitor requires configuration")
	}
	if deps.Source == nil || deps.Capture == nil || deps.Assembler == nil {
		return nil, errors.New("monitor requires status source, capture, and assembler")
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewRunID == nil {
		deps.NewRunID = func() string { return uuid.NewString() }
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	m := &Monitor{
		source:       deps.Source,
		capture:      deps.Capture,
		assembler:    deps.Assembler,
		notifier:     deps.Notifier,
		watchdog:     watchdog.New(cfg.WatchdogTimeout(), deps.Clock),
		now:          deps.Clock,
		newRunID:     deps.NewRunID,
		logger:       logging.NewComponentLogger(logger, "monitor"),
		activeState:  cfg.Printer.ActiveState,
		interval:     cfg.PollInterval(),
		fetchTimeout: cfg.PrinterRequestTimeout(),
		outputDir:    cfg.Paths.OutputDir,
		framesDir:    cfg.Paths.FramesDir,
		extension:    cfg.Assembly.Extension,
		sess:         session{firstPoll: true},
	}
	if m.interval <= 0 {
		m.interval = 10 * time.Second
	}
	if m.fetchTimeout <= 0 || m.fetchTimeout > m.interval {
		m.fetchTimeout = m.interval
	}
	m.publish()
	return m, nil
}

// Run polls immediately, then once per interval, until ctx is cancelled.
// On cancellation it stops any running capture, keeping its frames so the
// next run can resume.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("monitor already running")
	}
	defer m.running.Store(false)

	m.logger.Info("monitor started",
		logging.String(logging.FieldEventType, "monitor_started"),
		logging.Duration("poll_interval", m.interval),
		logging.Duration("watchdog_timeout", m.watchdog.Timeout()),
		logging.String("active_state", m.activeState),
	)

	m.removeStaleOutputs()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tickSafely(ctx)
	for {
		select {
		case <-ctx.Done():
			return m.Shutdown()
		case <-ticker.C:
			m.tickSafely(ctx)
		}
	}
}

// Status returns the most recently published snapshot.
func (m *Monitor) Status() Status {
	if s := m.status.Load(); s != nil {
		return *s
	}
	return Status{Phase: PhaseStarting}
}

// Shutdown stops the capture process without assembling. Frames stay on
// disk. Safe to call more than once.
func (m *Monitor) Shutdown() error {
	var err error
	m.shutdown.Do(func() {
		m.watchdog.Clear()
		if m.capture.IsCapturing() {
			if stopErr := m.capture.Stop(); stopErr != nil {
				err = fmt.Errorf("stop capture on shutdown: %w", stopErr)
				logging.ErrorWithContext(m.logger, "capture stop on shutdown failed", "shutdown_stop_failed",
					logging.Error(stopErr),
					logging.String(logging.FieldErrorHint, "check for a lingering ffmpeg process"),
				)
			}
		}
		m.sess.stopped = true
		m.logger.Info("monitor stopped",
			logging.String(logging.FieldEventType, "monitor_stopped"),
			logging.Int("frames_kept", m.capture.FrameCount()),
		)
		m.publish()
	})
	return err
}

func (m *Monitor) tickSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(m.logger, "poll tick panicked", "tick_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this as a bug; polling continues"),
			)
		}
		m.publish()
	}()
	m.tick(ctx)
}

// tick handles one poll: fetch, classify, act, then the watchdog check.
// A failed fetch changes nothing but the watchdog still runs.
func (m *Monitor) tick(ctx context.Context) {
	m.sess.polls++

	fetchCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	snap, err := m.source.FetchStatus(fetchCtx)
	cancel()

	m.sess.lastPoll = m.now()
	if err != nil {
		m.sess.lastPollError = err.Error()
		logging.WarnWithContext(m.logger, "printer status poll failed", "status_poll_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "state unchanged until the next successful poll"),
			logging.Bool("retryable", services.Retryable(err)),
		)
	} else {
		m.sess.lastPollError = ""
		m.handle(ctx, Observe(snap, m.activeState))
	}

	// Guarding the open job rather than the live process also closes a job
	// whose capture died and never came back.
	if m.watchdog.Check(m.sess.jobOpen) {
		deadline, _ := m.watchdog.Deadline()
		logging.WarnWithContext(m.jobLogger(), "watchdog expired; finishing job", "watchdog_expired",
			logging.String("deadline", deadline.Format(time.RFC3339)),
			logging.Duration("timeout", m.watchdog.Timeout()),
			logging.String(logging.FieldImpact, "capture stopped without a fresh printing report"),
			logging.String(logging.FieldErrorHint, "check printer connectivity and the active_state setting"),
		)
		m.sess.lastEvent = EventStopped
		m.finishJob(ctx, "watchdog")
	}
}

func (m *Monitor) handle(ctx context.Context, cur Observation) {
	flags := Flags{
		FirstPoll:      m.sess.firstPoll,
		JobOpen:        m.sess.jobOpen,
		Capturing:      m.capture.IsCapturing(),
		CanResume:      m.capture.CanResume(),
		JobID:          m.sess.jobID,
		ClosedJobID:    m.sess.closedJobID,
		ClosedJobLabel: m.sess.closedJobLabel,
	}
	event := Classify(m.sess.last, cur, flags)

	m.logger.Debug("poll classified",
		logging.String("event", event.String()),
		logging.String("printer_state", cur.State),
		logging.Bool("active", cur.Active),
		logging.String("printer_job", cur.JobID),
		logging.Bool("capturing", flags.Capturing),
		logging.Bool("job_open", flags.JobOpen),
	)

	if flags.JobOpen && !flags.Capturing && cur.Active && !m.sess.stallLogged {
		logging.WarnWithContext(m.jobLogger(), "capture process not running for open job", "capture_stalled",
			logging.String(logging.FieldImpact, "frames are not being recorded"),
			logging.String(logging.FieldErrorHint, "check the camera source and ffmpeg stderr in the log"),
		)
		m.sess.stallLogged = true
	}

	m.sess.firstPoll = false
	if event != EventNone {
		m.sess.lastEvent = event
	}

	switch event {
	case EventStarted:
		m.beginJob(ctx, cur, false)
	case EventResumed:
		m.beginJob(ctx, cur, true)
	case EventHeartbeat:
		m.heartbeat(cur)
	case EventStopped:
		m.finishJob(ctx, "printer_inactive")
	case EventSwitched:
		m.finishJob(ctx, "job_changed")
		m.beginJob(ctx, cur, false)
	case EventDiscardStale:
		m.discardStale()
	}
	m.sess.last = cur
}

func (m *Monitor) beginJob(ctx context.Context, cur Observation, resume bool) {
	if m.capture.IsCapturing() {
		m.logger.Debug("capture already running; start ignored")
		return
	}

	continuing := m.sess.jobOpen && (cur.JobID == "" || cur.JobID == m.sess.jobID)
	if !continuing {
		m.sess.jobID = cur.JobID
		m.sess.jobLabel = cur.JobLabel
		m.sess.runID = m.newRunID()
		m.sess.startedAt = m.now()
		m.sess.anomalyJobID = ""
	} else if m.sess.jobLabel == "" {
		m.sess.jobLabel = cur.JobLabel
	}
	m.sess.jobOpen = true
	m.sess.lastJobError = ""
	m.watchdog.Arm()

	logger := m.jobLogger()
	if err := m.capture.Start(m.jobContext(ctx), resume); err != nil {
		if errors.Is(err, capture.ErrAlreadyCapturing) {
			logger.Debug("capture already running; start ignored")
			return
		}
		m.sess.lastJobError = err.Error()
		logging.ErrorWithContext(logger, "capture start failed", "capture_start_failed",
			logging.Error(err),
			logging.Bool("resume", resume),
			logging.String(logging.FieldErrorHint, "retrying on the next active poll; check the capture source"),
		)
		return
	}
	m.sess.stallLogged = false

	logger.Info("capture running",
		logging.String(logging.FieldEventType, "job_capture_started"),
		logging.String("job_label", m.sess.jobLabel),
		logging.Bool("resume", resume),
		logging.Int("frames_on_disk", m.capture.FrameCount()),
	)
}

func (m *Monitor) heartbeat(cur Observation) {
	m.watchdog.Reset(true)
	if m.sess.jobLabel == "" && cur.JobID == m.sess.jobID {
		m.sess.jobLabel = cur.JobLabel
	}
	if cur.JobID == "" || m.sess.jobID == "" || cur.JobID == m.sess.jobID {
		return
	}
	if m.sess.anomalyJobID == cur.JobID {
		return
	}
	m.sess.anomalyJobID = cur.JobID
	logging.WarnWithContext(m.jobLogger(), "printer reports a different job while capturing", "job_id_mismatch",
		logging.String("printer_job", cur.JobID),
		logging.String(logging.FieldImpact, "capture continues under the original job"),
		logging.String(logging.FieldErrorHint, "the video will be named after the original job"),
	)
}

// finishJob is the stop sequence: stop capture, assemble, clear frames,
// notify. Any failure leaves the frames untouched for manual recovery.
func (m *Monitor) finishJob(ctx context.Context, reason string) {
	m.watchdog.Clear()

	logger := m.jobLogger()
	jobID, label, startedAt := m.sess.jobID, m.sess.jobLabel, m.sess.startedAt
	jobCtx := m.jobContext(ctx)
	m.sess.closeJob()

	logger.Info("job finished; stopping capture",
		logging.String(logging.FieldEventType, "job_finished"),
		logging.String("reason", reason),
	)

	if err := m.capture.Stop(); err != nil {
		m.sess.lastJobError = err.Error()
		logging.ErrorWithContext(logger, "capture stop failed; skipping assembly", "capture_stop_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "frames kept; run `printlapse assemble` once ffmpeg has exited"),
		)
		return
	}

	now := m.now()
	output, err := uniquePath(m.outputDir, ArtifactName(label, jobID, now, m.extension))
	if err != nil {
		m.sess.lastJobError = err.Error()
		logging.ErrorWithContext(logger, "artifact path unavailable", "artifact_path_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "free up names in the output directory"),
		)
		return
	}

	asmCtx, cancel := context.WithTimeout(context.WithoutCancel(jobCtx), assemblyTimeout)
	defer cancel()
	result, err := m.assembler.Assemble(asmCtx, output)
	if err != nil {
		m.sess.lastJobError = err.Error()
		if errors.Is(err, assembly.ErrNoFrames) {
			logging.WarnWithContext(logger, "no frames captured; nothing to assemble", "assembly_skipped",
				logging.String(logging.FieldImpact, "no video for this job"),
				logging.String(logging.FieldErrorHint, "check the camera source and capture interval"),
			)
			return
		}
		logging.ErrorWithContext(logger, "timelapse assembly failed; frames kept", "assembly_failed",
			logging.Error(err),
			logging.String("output", output),
			logging.String(logging.FieldErrorHint, "run `printlapse assemble` to retry manually"),
		)
		return
	}

	m.sess.lastArtifact = result.Path
	m.sess.lastArtifactAt = now
	logger.Info("timelapse assembled",
		logging.String(logging.FieldEventType, "assembly_complete"),
		logging.String("output", result.Path),
		logging.Int("frames", result.Frames),
		logging.Duration("video_duration", result.Duration),
		logging.Duration("elapsed", result.Elapsed),
		logging.Duration("job_duration", now.Sub(startedAt)),
	)

	if err := m.capture.Clear(); err != nil {
		logging.WarnWithContext(logger, "frame cleanup failed", "frame_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old frames remain until the next fresh start"),
		)
	}

	artifact := notifications.Artifact{
		Path:     result.Path,
		JobID:    jobID,
		JobLabel: label,
		Frames:   result.Frames,
		Duration: result.Duration,
	}
	if err := m.notifier.JobCompleted(jobCtx, artifact); err != nil {
		logging.WarnWithContext(logger, "timelapse notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "video saved but nobody was told"),
			logging.String(logging.FieldErrorHint, "run `printlapse test-notify` to check the notification setup"),
		)
	}
}

// removeStaleOutputs drops half-written videos from an encode that was killed
// before it could publish. Run only calls it before the first tick, when no
// assembly can be in flight.
func (m *Monitor) removeStaleOutputs() {
	removed, err := assembly.RemoveStale(m.outputDir, m.framesDir)
	if err != nil {
		logging.WarnWithContext(m.logger, "stale assembly cleanup failed", "stale_outputs_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "hidden temp files remain in the output directory"),
			logging.String(logging.FieldErrorHint, "remove dot-prefixed partial videos manually"),
		)
	}
	if removed > 0 {
		m.logger.Info("removed partial videos from an interrupted assembly",
			logging.String(logging.FieldEventType, "stale_outputs_removed"),
			logging.Int("removed", removed),
		)
	}
}

func (m *Monitor) discardStale() {
	count := m.capture.FrameCount()
	if err := m.capture.Clear(); err != nil {
		logging.WarnWithContext(m.logger, "stale frame cleanup failed", "stale_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next job starts fresh and clears them again"),
		)
		return
	}
	m.logger.Info("discarded frames from an earlier run",
		logging.String(logging.FieldEventType, "stale_frames_discarded"),
		logging.Int("frames", count),
	)
}

func (m *Monitor) jobContext(ctx context.Context) context.Context {
	if m.sess.jobID != "" {
		ctx = services.WithJobID(ctx, m.sess.jobID)
	}
	if m.sess.runID != "" {
		ctx = services.WithRunID(ctx, m.sess.runID)
	}
	return ctx
}

func (m *Monitor) jobLogger() *slog.Logger {
	return logging.WithContext(m.jobContext(context.Background()), m.logger)
}

func (m *Monitor) publish() {
	capturing := m.capture.IsCapturing()
	st := &Status{
		PrinterState:   m.sess.last.State,
		PrinterActive:  m.sess.last.Active,
		JobID:          m.sess.jobID,
		JobLabel:       m.sess.jobLabel,
		RunID:          m.sess.runID,
		JobStartedAt:   m.sess.startedAt,
		Capturing:      capturing,
		Frames:         m.capture.FrameCount(),
		LastPoll:       m.sess.lastPoll,
		LastPollError:  m.sess.lastPollError,
		LastArtifact:   m.sess.lastArtifact,
		LastArtifactAt: m.sess.lastArtifactAt,
		LastJobError:   m.sess.lastJobError,
		Polls:          m.sess.polls,
	}
	if m.sess.lastEvent != EventNone {
		st.LastEvent = m.sess.lastEvent.String()
	}
	if deadline, ok := m.watchdog.Deadline(); ok {
		st.WatchdogDeadline = deadline
	}
	switch {
	case m.sess.stopped:
		st.Phase = PhaseStopped
	case m.sess.firstPoll:
		st.Phase = PhaseStarting
	case capturing:
		st.Phase = PhaseCapturing
	case m.sess.jobOpen:
		st.Phase = PhaseStalled
	default:
		st.Phase = PhaseIdle
	}
	m.status.Store(st)
}
