// Package preflight provides readiness checks for the printer, the camera,
// and the filesystem paths printlapse writes to.
//
// The daemon logs the results once at startup; `printlapse check` prints
// them as a table. Checks never mutate anything.
package preflight
