// Package monitor runs the polling loop that turns printer status reports
// into capture, assembly, and notification actions.
//
// Classify is a pure function from (previous observation, current
// observation, session flags) to an Event; Monitor owns the session and
// applies events on a single goroutine. Status snapshots are published
// atomically for the IPC layer.
package monitor
