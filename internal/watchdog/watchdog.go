// Package watchdog bounds how long a capture may run without a fresh
// "still printing" report from the printer.
package watchdog

import "time"

// Clock returns the current time. Tests inject a controllable clock.
type Clock func() time.Time

// Timer holds a single deadline. It is not safe for concurrent use; the
// monitor loop owns it.
type Timer struct {
	timeout  time.Duration
	now      Clock
	deadline time.Time
	armed    bool
}

// New returns a Timer that expires timeout after each Arm or Reset. A timeout
// of zero or less disables the watchdog entirely.
func New(timeout time.Duration, now Clock) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{timeout: timeout, now: now}
}

// Enabled reports whether a positive timeout was configured.
func (t *Timer) Enabled() bool {
	return t.timeout > 0
}

// Timeout returns the configured timeout.
func (t *Timer) Timeout() time.Duration {
	return t.timeout
}

// Arm sets the deadline to now+timeout. No-op when disabled.
func (t *Timer) Arm() {
	if !t.Enabled() {
		return
	}
	t.deadline = t.now().Add(t.timeout)
	t.armed = true
}

// Reset pushes the deadline out again, but only while a capture is running.
func (t *Timer) Reset(capturing bool) {
	if !capturing {
		return
	}
	t.Arm()
}

// Check reports whether the deadline has passed. It never fires while the
// watchdog is disabled or unarmed, or when guarded is false (nothing to
// finish). Check does not clear the deadline; the caller does that once it
// has acted on the expiry.
func (t *Timer) Check(guarded bool) bool {
	if !t.Enabled() || !guarded || !t.armed {
		return false
	}
	return !t.now().Before(t.deadline)
}

// Clear drops the deadline.
func (t *Timer) Clear() {
	t.deadline = time.Time{}
	t.armed = false
}

// Deadline returns the armed deadline, if any.
func (t *Timer) Deadline() (time.Time, bool) {
	return t.deadline, t.armed
}
