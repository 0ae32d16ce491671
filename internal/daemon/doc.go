// Package daemon coordinates the long-running printlapse process.
//
// It hosts the monitor loop under a flock-based lock so only one instance
// captures into a frames directory, and exposes status and test
// notifications for the IPC server.
//
// Keep orchestration logic here: polling, capture, and assembly live in
// their own packages while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
