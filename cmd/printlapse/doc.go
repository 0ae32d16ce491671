// Package main hosts the printlapse CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground, queries a
// running daemon over its IPC socket, and offers offline maintenance for the
// frames directory: listing, clearing, and manual assembly when an automatic
// one failed.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
