// Package daemonrun assembles the daemon process: logging, pid and socket
// files, the monitor's collaborators, and signal-driven shutdown.
package daemonrun
